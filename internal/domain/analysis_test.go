package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterFeatures(t *testing.T) {
	results := map[string]any{
		"brand_compliance":   map[string]any{"score": 0.8},
		"content_analysis":   map[string]any{"score": 0.7},
		"metaphor_analysis":  map[string]any{"score": 0.6},
		"channel_compliance": map[string]any{"score": 0.9},
	}

	tests := []struct {
		name     string
		selected []string
		wantKeys []string
	}{
		{
			name:     "direct features",
			selected: []string{"brand_compliance", "content_analysis"},
			wantKeys: []string{"brand_compliance", "content_analysis"},
		},
		{
			name:     "aliased features share a nested result",
			selected: []string{"messaging_intent", "funnel_compatibility"},
			wantKeys: []string{"content_analysis"},
		},
		{
			name:     "resonance index maps to metaphor analysis",
			selected: []string{"resonance_index"},
			wantKeys: []string{"metaphor_analysis"},
		},
		{
			name:     "unknown features dropped",
			selected: []string{"made_up_feature"},
			wantKeys: nil,
		},
		{
			name:     "empty selection yields nothing",
			selected: nil,
			wantKeys: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, kept := FilterFeatures(results, tt.selected)
			assert.Equal(t, tt.wantKeys, kept)
			assert.Len(t, filtered, len(tt.wantKeys))
			for _, key := range tt.wantKeys {
				assert.Contains(t, filtered, key)
			}
		})
	}
}

func TestFilterFeatures_MissingNestedResult(t *testing.T) {
	results := map[string]any{
		"brand_compliance": map[string]any{"score": 0.8},
	}

	filtered, kept := FilterFeatures(results, []string{"brand_compliance", "content_analysis"})
	assert.Equal(t, []string{"brand_compliance"}, kept)
	assert.Len(t, filtered, 1)
}

func TestMapChannelsToPlatforms(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		want     []string
	}{
		{
			name:     "known channels",
			channels: []string{"facebook", "instagram"},
			want:     []string{"Facebook", "Instagram"},
		},
		{
			name:     "case and whitespace normalized",
			channels: []string{" TikTok ", "YOUTUBE"},
			want:     []string{"TikTok", "YouTube"},
		},
		{
			name:     "unknown channels dropped",
			channels: []string{"myspace", "google ads"},
			want:     []string{"Google Ads"},
		},
		{
			name:     "empty input",
			channels: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapChannelsToPlatforms(tt.channels))
		})
	}
}
