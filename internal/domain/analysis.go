// Package domain contains core business types and interfaces.
//
// This file defines the persisted ad-analysis record and the feature
// filtering applied when results are read back under a plan.
package domain

import (
	"strings"
	"time"
)

// PlanUsageSnapshot captures the entitlement state at the moment an
// analysis was billed. It is embedded in the analysis record for auditing.
type PlanUsageSnapshot struct {
	AdsUsed           int      `json:"adsUsed"`
	MaxAdsPerMonth    int      `json:"maxAdsPerMonth"`
	TotalAdsRemaining int      `json:"totalAdsRemaining"`
	PlanName          PlanName `json:"planName"`
}

// AnalysisRecord is one completed (or attempted) ad analysis, keyed by
// artifact ID in the user_analysis collection.
type AnalysisRecord struct {
	UserID        string                 `json:"userId"`
	ArtifactID    string                 `json:"artifact_id"`
	BrandID       string                 `json:"brand_id"`
	AdTitle       string                 `json:"adTitle,omitempty"`
	MessageIntent string                 `json:"messageIntent"`
	FunnelStage   string                 `json:"funnelStage"`
	Channels      []string               `json:"channels"`
	Source        string                 `json:"source,omitempty"`
	ClientID      string                 `json:"clientId,omitempty"`
	Artifacts     map[string]any         `json:"artifacts,omitempty"`
	MediaURL      string                 `json:"mediaUrl"`
	MediaType     string                 `json:"mediaType"`
	MediaCategory MediaType              `json:"mediaCategory"`
	StoragePath   string                 `json:"storagePath"`
	BrandName     string                 `json:"brandName"`
	Results       map[string]any         `json:"ai_analysis_results"`
	PlanUsage     PlanUsageSnapshot      `json:"plan_usage_at_time"`
	Logo          map[string]any         `json:"logoInfo,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// featureResultMapping maps plan feature names to the nested feature keys
// produced by the comprehensive analysis. Several plan features share a
// nested result.
var featureResultMapping = map[string]string{
	"brand_compliance":    "brand_compliance",
	"channel_compliance":  "channel_compliance",
	"content_analysis":    "content_analysis",
	"metaphor_analysis":   "metaphor_analysis",
	"messaging_intent":    "content_analysis",
	"funnel_compatibility": "content_analysis",
	"resonance_index":     "metaphor_analysis",
}

// FilterFeatures selects, from the nested result features of a
// comprehensive analysis, only those the plan's selected features entitle
// the user to see. It returns the filtered result map and the nested
// feature names that survived, in selection order without duplicates.
func FilterFeatures(results map[string]any, selectedFeatures []string) (map[string]any, []string) {
	filtered := make(map[string]any)
	var kept []string
	for _, feature := range selectedFeatures {
		nested, ok := featureResultMapping[feature]
		if !ok {
			continue
		}
		value, ok := results[nested]
		if !ok {
			continue
		}
		if _, seen := filtered[nested]; seen {
			continue
		}
		filtered[nested] = value
		kept = append(kept, nested)
	}
	return filtered, kept
}

// Channel-to-platform mapping used when forwarding an analysis request to
// the remote analyzer. Channels outside this set are dropped.
var platformMapping = map[string]string{
	"facebook":   "Facebook",
	"instagram":  "Instagram",
	"google ads": "Google Ads",
	"youtube":    "YouTube",
	"tiktok":     "TikTok",
}

// MapChannelsToPlatforms translates the caller's channel names into the
// platform identifiers the analyzer expects. Unknown channels are skipped
// rather than defaulted.
func MapChannelsToPlatforms(channels []string) []string {
	var platforms []string
	for _, ch := range channels {
		if p, ok := platformMapping[strings.ToLower(strings.TrimSpace(ch))]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}
