package billing

import (
	"time"
)

// =============================================================================
// Billing Period Policy
// =============================================================================

// ResetDecision is the outcome of evaluating the monthly rollover rule for
// one record.
type ResetDecision struct {
	// Reset indicates whether monthly usage must roll over to zero.
	Reset bool

	// Malformed indicates the stored last-usage value could not be parsed.
	// The policy fails safe: usage is assumed zero and the record is
	// flagged so callers can log the event.
	Malformed bool
}

// EvaluateReset decides whether monthly usage should reset, given the stored
// last-usage timestamp and the current instant.
//
// Rules:
//   - Empty lastUsageDate: no reset needed, usage is already at baseline.
//   - Parseable lastUsageDate: reset iff its (year, month) differs from now's.
//   - Unparseable lastUsageDate: reset, assume zero usage. Granting a clean
//     slate beats locking the user out over a corrupt field.
func EvaluateReset(lastUsageDate string, now time.Time) ResetDecision {
	if lastUsageDate == "" {
		return ResetDecision{}
	}

	last, err := ParseUsageTime(lastUsageDate)
	if err != nil {
		return ResetDecision{Reset: true, Malformed: true}
	}

	ly, lm, _ := last.Date()
	ny, nm, _ := now.Date()
	if ly != ny || lm != nm {
		return ResetDecision{Reset: true}
	}
	return ResetDecision{}
}

// EffectiveAdsUsed returns the usage count that applies at now, after the
// rollover rule: the stored count inside the same calendar month, zero once
// the month has turned or the stored timestamp is unusable.
func EffectiveAdsUsed(adsUsed int, lastUsageDate string, now time.Time) (int, ResetDecision) {
	decision := EvaluateReset(lastUsageDate, now)
	if decision.Reset {
		return 0, decision
	}
	return adsUsed, decision
}

// usageTimeFormats are the layouts accepted for stored usage timestamps.
// RFC3339 is what the engine writes; the date-only form appears in records
// imported from the previous system.
var usageTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseUsageTime parses a stored usage timestamp.
func ParseUsageTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range usageTimeFormats {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
