package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/adlens/adlens/internal/analyzer"
)

// Provider is a mock analysis provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	AnalyzeResponse *analyzer.Result
	AnalyzeError    error

	// AnalyzeFunc, when set, takes over the whole call. Useful for tests
	// that need side effects while an analysis is in flight.
	AnalyzeFunc func(ctx context.Context, params analyzer.AnalyzeParams) (*analyzer.Result, error)

	// Call tracking for testing
	AnalyzeCalls int
	LastParams   analyzer.AnalyzeParams
}

// New creates a new mock analysis provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Analyze returns a canned response covering every capability
func (p *Provider) Analyze(ctx context.Context, params analyzer.AnalyzeParams) (*analyzer.Result, error) {
	p.AnalyzeCalls++
	p.LastParams = params

	// If a custom behavior, response or error is set, use it
	if p.AnalyzeFunc != nil {
		return p.AnalyzeFunc(ctx, params)
	}
	if p.AnalyzeError != nil {
		return nil, p.AnalyzeError
	}
	if p.AnalyzeResponse != nil {
		return p.AnalyzeResponse, nil
	}

	// Default canned response
	return &analyzer.Result{
		Sections: map[string]any{
			"brand_compliance": map[string]any{
				"score":   0.82,
				"summary": "Creative aligns with the brand palette; logo placement follows guidelines.",
			},
			"content_analysis": map[string]any{
				"score":           0.74,
				"message_clarity": "high",
				"summary":         "Primary message is legible within the first two seconds.",
			},
			"metaphor_analysis": map[string]any{
				"score":   0.61,
				"summary": "Visual metaphor is recognizable but competes with the headline.",
			},
			"channel_compliance": map[string]any{
				"score":     0.9,
				"platforms": params.Platforms,
				"summary":   "Aspect ratio and safe zones are valid for the selected platforms.",
			},
		},
		Model:    "mock-analyzer-v1",
		Duration: 250 * time.Millisecond,
	}, nil
}
