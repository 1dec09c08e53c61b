// Package domain contains core business types and interfaces.
//
// This file defines brand documents and the media files attached to them.
package domain

import (
	"strings"
	"time"
)

// MediaType categorizes a stored media file.
type MediaType string

const (
	MediaTypeLogo  MediaType = "logo"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// Valid checks if the media type is one of the known categories.
func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeLogo, MediaTypeImage, MediaTypeVideo:
		return true
	default:
		return false
	}
}

// MaxMediaFileSize is the upload size cap for brand and ad media.
const MaxMediaFileSize = 50 << 20 // 50MB

// Thumbnail generation settings for brand media previews.
const (
	ThumbnailMaxWidth    = 320
	ThumbnailMaxHeight   = 320
	ThumbnailJPEGQuality = 85
)

// AllowedImageTypes lists the accepted image MIME types for logos and ad
// creatives.
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
}

// AllowedVideoTypes lists the accepted video MIME types for ad creatives.
var AllowedVideoTypes = []string{
	"video/mp4",
	"video/avi",
	"video/mov",
	"video/wmv",
	"video/flv",
	"video/webm",
}

// IsAllowedImageType reports whether contentType is an accepted image type.
func IsAllowedImageType(contentType string) bool {
	return contains(AllowedImageTypes, contentType)
}

// IsAllowedVideoType reports whether contentType is an accepted video type.
func IsAllowedVideoType(contentType string) bool {
	return contains(AllowedVideoTypes, contentType)
}

// IsAllowedMediaType reports whether contentType is acceptable for an ad
// creative (image or video).
func IsAllowedMediaType(contentType string) bool {
	return IsAllowedImageType(contentType) || IsAllowedVideoType(contentType)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ClassifyMedia determines the media category for an uploaded ad creative
// from its content type and filename.
func ClassifyMedia(contentType, filename string) MediaType {
	switch {
	case IsAllowedVideoType(contentType):
		return MediaTypeVideo
	case strings.Contains(strings.ToLower(filename), "logo"),
		strings.Contains(strings.ToLower(contentType), "logo"):
		return MediaTypeLogo
	default:
		return MediaTypeImage
	}
}

// MediaFile describes one stored media object attached to a brand.
type MediaFile struct {
	FileID          string    `json:"fileId"`
	Filename        string    `json:"filename"`
	ContentType     string    `json:"contentType"`
	FileSize        int64     `json:"fileSize"`
	URL             string    `json:"url"`
	StoragePath     string    `json:"storagePath"`
	ThumbnailPath   string    `json:"thumbnailPath,omitempty"`
	MediaType       MediaType `json:"mediaType"`
	Metadata        string    `json:"metadata,omitempty"`
	UploadTimestamp time.Time `json:"uploadTimestamp"`
}

// Brand is a brand profile document, keyed by brand ID in the brand_data
// collection. Media files are embedded; their signed URLs are refreshed on
// every read since they expire.
type Brand struct {
	BrandID              string      `json:"brandId"`
	UserID               string      `json:"userId"`
	BrandName            string      `json:"brandName"`
	Tagline              string      `json:"tagline,omitempty"`
	BrandDescription     string      `json:"brandDescription,omitempty"`
	IndustryCategory     string      `json:"industryCategory,omitempty"`
	TargetAudience       string      `json:"targetAudience,omitempty"`
	PrimaryColor         string      `json:"primaryColor,omitempty"`
	SecondaryColor       string      `json:"secondaryColor,omitempty"`
	AccentColor          string      `json:"accentColor,omitempty"`
	ColorPalette         string      `json:"colorPalette,omitempty"`
	ToneOfVoice          string      `json:"toneOfVoice,omitempty"`
	CustomTone           string      `json:"customTone,omitempty"`
	CommunicationStyle   string      `json:"communicationStyle,omitempty"`
	BrandVoice           string      `json:"brandVoice,omitempty"`
	KeyMessages          string      `json:"keyMessages,omitempty"`
	IsComplete           bool        `json:"isComplete"`
	CompletionPercentage int         `json:"completionPercentage"`
	MediaFiles           []MediaFile `json:"mediaFiles"`
	MediaCount           int         `json:"mediaCount"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// Logo returns the first logo media file, or nil if the brand has none.
func (b *Brand) Logo() *MediaFile {
	for i := range b.MediaFiles {
		if b.MediaFiles[i].MediaType == MediaTypeLogo {
			return &b.MediaFiles[i]
		}
	}
	return nil
}

// SanitizeBrandName strips characters that are unsafe in storage keys and
// replaces spaces with underscores, matching how brand media paths are laid
// out in the blob store.
func SanitizeBrandName(name string) string {
	var sb strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteRune(c)
		case c == ' ', c == '-', c == '_':
			sb.WriteRune(c)
		}
	}
	return strings.ReplaceAll(strings.TrimRight(sb.String(), " "), " ", "_")
}
