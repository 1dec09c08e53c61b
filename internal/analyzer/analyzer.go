package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider defines the interface for AI-powered ad creative analysis.
type Provider interface {
	// Analyze submits an ad creative with its brand context and returns the
	// per-capability analysis results.
	Analyze(ctx context.Context, params AnalyzeParams) (*Result, error)
}

// AnalyzeParams contains parameters for an analysis run.
type AnalyzeParams struct {
	MediaData   []byte // Raw creative bytes (image or video)
	ContentType string // MIME type (e.g., "image/jpeg")
	Filename    string // Original filename

	AdTitle       string   // Title of the ad
	MessageIntent string   // What the ad is trying to communicate
	FunnelStage   string   // Marketing funnel stage (awareness, consideration, ...)
	Platforms     []string // Target platforms (Facebook, Instagram, ...)

	BrandName    string   // Brand the creative belongs to
	BrandColors  []string // Brand palette hex codes, if known
	ToneOfVoice  string   // Brand tone descriptor
	LogoURL      string   // URL of the brand logo, if one is on file
	AnalysisID   string   // Analysis ID for tracking
	UserID       string   // User ID for usage tracking
}

// Result contains the complete analysis of an ad creative, keyed by result
// section (brand_compliance, content_analysis, metaphor_analysis,
// channel_compliance). Section payloads are provider-defined; a section
// containing an "error" key is treated as failed.
type Result struct {
	Sections map[string]any // Per-capability outcomes
	Model    string         // Model identifier reported by the provider
	Duration time.Duration  // Analysis duration
}

// SectionFailed reports whether a single result section carries an error.
func SectionFailed(section any) bool {
	m, ok := section.(map[string]any)
	if !ok {
		return false
	}
	_, failed := m["error"]
	return failed
}

// Succeeded reports whether at least one section completed without error.
// Usage is only charged when this holds.
func (r *Result) Succeeded() bool {
	for _, section := range r.Sections {
		if !SectionFailed(section) {
			return true
		}
	}
	return false
}

// SuccessRate returns the fraction of sections that completed without error.
func (r *Result) SuccessRate() float64 {
	if len(r.Sections) == 0 {
		return 0
	}
	ok := 0
	for _, section := range r.Sections {
		if !SectionFailed(section) {
			ok++
		}
	}
	return float64(ok) / float64(len(r.Sections))
}

// ProviderConfig contains common configuration for analysis providers.
type ProviderConfig struct {
	BaseURL        string        // Analysis service endpoint
	RequestTimeout time.Duration // Timeout for a full analysis run
}

// Error codes for analysis provider operations
var (
	// ErrUnavailable indicates the analysis service is temporarily unavailable.
	ErrUnavailable = errors.New("analysis service temporarily unavailable")

	// ErrTimeout indicates the analysis request timed out.
	ErrTimeout = errors.New("analysis request timed out")

	// ErrInvalidMedia indicates the media format or content is invalid.
	ErrInvalidMedia = errors.New("invalid media format or content")

	// ErrRateLimit indicates the service rate limit has been exceeded.
	ErrRateLimit = errors.New("analysis service rate limit exceeded")
)

// IsRetryable returns true if the error is a transient error that can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with context about the analysis operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("analyzer %s: %w", operation, err)
}
