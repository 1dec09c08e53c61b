package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID        = "invalid"                 // Invalid input or validation failure
	EUNAUTHORIZED   = "unauthorized"            // Authentication required
	EFORBIDDEN      = "forbidden"               // Permission denied
	ENOTFOUND       = "not_found"               // Resource not found
	ECONFLICT       = "conflict"                // Resource conflict (e.g., duplicate)
	ETOOLARGE       = "too_large"               // Request entity too large
	EPLANMISMATCH   = "plan_mismatch"           // Topup against a different plan tier
	EINVALIDUPGRADE = "invalid_upgrade"         // Upgrade target not strictly higher
	EMONTHLYLIMIT   = "monthly_limit"           // Monthly ad allowance exhausted
	EBALANCE        = "balance_exhausted"       // No ads remaining on the plan
	EANALYSISFAILED = "analysis_failed"         // Remote analysis produced no usable result
	ECONCURRENT     = "concurrent_modification" // Quota changed between authorize and commit
	EINTERNAL       = "internal"                // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "plan.topup")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// PlanMismatch creates a topup tier-mismatch error.
func PlanMismatch(op string, current, requested PlanName) *Error {
	return &Error{
		Code:    EPLANMISMATCH,
		Op:      op,
		Message: fmt.Sprintf("topup can only be done for the same plan: current plan %q, requested plan %q", current, requested),
	}
}

// InvalidUpgrade creates an invalid-upgrade-direction error.
func InvalidUpgrade(op string, current, requested PlanName) *Error {
	return &Error{
		Code:    EINVALIDUPGRADE,
		Op:      op,
		Message: fmt.Sprintf("upgrade can only be done to a higher plan: current plan %q, requested plan %q", current, requested),
	}
}

// MonthlyLimitExceeded creates a monthly-cap error.
func MonthlyLimitExceeded(op string, used, limit int) *Error {
	return &Error{
		Code:    EMONTHLYLIMIT,
		Op:      op,
		Message: fmt.Sprintf("maximum monthly limit reached (%d of %d ads); wait until next month or upgrade your plan", used, limit),
	}
}

// BalanceExhausted creates a no-ads-remaining error.
func BalanceExhausted(op string) *Error {
	return &Error{
		Code:    EBALANCE,
		Op:      op,
		Message: "no ads remaining in your plan; purchase more ads or upgrade your plan",
	}
}

// AnalysisFailed creates an error for analysis runs with no usable result.
// Plan usage must never be charged when this error is returned.
func AnalysisFailed(err error, op string) *Error {
	return &Error{
		Code:    EANALYSISFAILED,
		Op:      op,
		Message: "analysis failed; plan usage was not updated",
		Err:     err,
	}
}

// ConcurrentModification creates an error for a commit whose quota
// precondition no longer holds. The analysis it covers stays unbilled,
// so callers can safely surface a retry.
func ConcurrentModification(op string) *Error {
	return &Error{
		Code:    ECONCURRENT,
		Op:      op,
		Message: "plan usage changed while the analysis was running; the analysis was not billed",
	}
}
