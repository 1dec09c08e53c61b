// Package remote implements the analysis provider against the hosted
// analysis service. Requests are multipart uploads of the creative plus its
// brand context; a circuit breaker guards the service so a struggling
// upstream fails fast instead of tying up workers for the full timeout.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/adlens/adlens/internal/analyzer"
)

// DefaultRequestTimeout bounds a full analysis run. Video analysis is slow;
// the service streams nothing back until every capability finishes.
const DefaultRequestTimeout = 20 * time.Minute

// Provider calls the hosted analysis service over HTTP.
type Provider struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*analyzer.Result]
	logger  *slog.Logger
}

// New creates a remote analysis provider.
func New(cfg analyzer.ProviderConfig, logger *slog.Logger) *Provider {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*analyzer.Result](gobreaker.Settings{
		Name:        "analysis-service",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Provider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// Analyze submits the creative and waits for the full result.
func (p *Provider) Analyze(ctx context.Context, params analyzer.AnalyzeParams) (*analyzer.Result, error) {
	start := time.Now()

	result, err := p.breaker.Execute(func() (*analyzer.Result, error) {
		return p.analyze(ctx, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, analyzer.WrapError("analyze", analyzer.ErrUnavailable)
		}
		return nil, err
	}

	result.Duration = time.Since(start)

	p.logger.Debug("analysis completed",
		"analysis_id", params.AnalysisID,
		"sections", len(result.Sections),
		"success_rate", result.SuccessRate(),
		"duration", result.Duration,
	)

	return result, nil
}

func (p *Provider) analyze(ctx context.Context, params analyzer.AnalyzeParams) (*analyzer.Result, error) {
	body, contentType, err := buildMultipartBody(params)
	if err != nil {
		return nil, analyzer.WrapError("analyze", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/analyze", body)
	if err != nil {
		return nil, analyzer.WrapError("analyze", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, analyzer.WrapError("analyze", analyzer.ErrTimeout)
		}
		return nil, analyzer.WrapError("analyze", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, analyzer.WrapError("analyze", analyzer.ErrRateLimit)
	case resp.StatusCode == http.StatusUnprocessableEntity, resp.StatusCode == http.StatusBadRequest:
		return nil, analyzer.WrapError("analyze", analyzer.ErrInvalidMedia)
	case resp.StatusCode >= 500:
		return nil, analyzer.WrapError("analyze", fmt.Errorf("%w: status %d", analyzer.ErrUnavailable, resp.StatusCode))
	default:
		return nil, analyzer.WrapError("analyze", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload struct {
		Results map[string]any `json:"results"`
		Model   string         `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, analyzer.WrapError("analyze", fmt.Errorf("decode response: %w", err))
	}

	return &analyzer.Result{
		Sections: payload.Results,
		Model:    payload.Model,
	}, nil
}

// buildMultipartBody assembles the upload: the creative as a file part plus
// the brand and ad context as form fields.
func buildMultipartBody(params analyzer.AnalyzeParams) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", params.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(params.MediaData); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"ad_title":       params.AdTitle,
		"message_intent": params.MessageIntent,
		"funnel_stage":   params.FunnelStage,
		"platforms":      strings.Join(params.Platforms, ","),
		"brand_name":     params.BrandName,
		"brand_colors":   strings.Join(params.BrandColors, ","),
		"tone_of_voice":  params.ToneOfVoice,
		"logo_url":       params.LogoURL,
		"content_type":   params.ContentType,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
