package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMedia(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		want        MediaType
	}{
		{"video by content type", "video/mp4", "ad.mp4", MediaTypeVideo},
		{"quicktime video", "video/quicktime", "clip.mov", MediaTypeVideo},
		{"logo by filename", "image/png", "company_logo.png", MediaTypeLogo},
		{"plain image", "image/jpeg", "banner.jpg", MediaTypeImage},
		{"logo filename case-insensitive", "image/png", "LOGO-dark.png", MediaTypeLogo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMedia(tt.contentType, tt.filename))
		})
	}
}

func TestIsAllowedMediaType(t *testing.T) {
	assert.True(t, IsAllowedMediaType("image/png"))
	assert.True(t, IsAllowedMediaType("video/mp4"))
	assert.False(t, IsAllowedMediaType("application/pdf"))
	assert.False(t, IsAllowedMediaType(""))
}

func TestSanitizeBrandName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "Acme", "Acme"},
		{"spaces to underscores", "Acme Corp", "Acme_Corp"},
		{"unsafe characters stripped", "Acme/Corp #1!", "AcmeCorp_1"},
		{"hyphens kept", "north-star", "north-star"},
		{"trailing space trimmed", "Acme ", "Acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeBrandName(tt.input))
		})
	}
}
