// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog and the plan record that carries a
// user's ad-analysis entitlement: total balance, monthly cap and the
// active billing window.
package domain

import (
	"time"
)

// PlanName identifies a tier in the plan catalog.
type PlanName string

const (
	PlanLite PlanName = "lite"
	PlanPlus PlanName = "plus"
	PlanPro  PlanName = "pro"
)

// Valid checks if the plan name exists in the catalog.
func (p PlanName) Valid() bool {
	_, ok := PlanCatalog[p]
	return ok
}

// Rank returns the plan's position in the upgrade hierarchy.
// Unknown plans rank 0, below every valid tier.
func (p PlanName) Rank() int {
	return planHierarchy[p]
}

// PlanCatalogEntry is the static configuration for one tier.
type PlanCatalogEntry struct {
	DurationDays   int     // Subscription window length
	TotalAds       int     // Lifetime ad-analysis balance granted
	MaxAdsPerMonth int     // Cap on analyses within a calendar month
	Price          float64 // Price charged per purchase of this tier
}

// PlanCatalog maps each tier to its fixed configuration.
var PlanCatalog = map[PlanName]PlanCatalogEntry{
	PlanLite: {DurationDays: 90, TotalAds: 12, MaxAdsPerMonth: 4, Price: 50},
	PlanPlus: {DurationDays: 180, TotalAds: 30, MaxAdsPerMonth: 5, Price: 100},
	PlanPro:  {DurationDays: 365, TotalAds: 132, MaxAdsPerMonth: 11, Price: 400},
}

// planHierarchy orders tiers for upgrade validation. Upgrades must move
// strictly upward.
var planHierarchy = map[PlanName]int{
	PlanLite: 1,
	PlanPlus: 2,
	PlanPro:  3,
}

// AllFeatures is the complete capability set, granted in full on upgrade.
var AllFeatures = []string{
	"brand_compliance",
	"content_analysis",
	"metaphor_analysis",
	"channel_compliance",
}

// PlanRecord is the authoritative entitlement state for one user.
//
// It lives in the plan_selections collection keyed by user ID and is owned
// exclusively by the billing engine. The user-profile document carries a
// best-effort mirror of a subset of these fields; the engine never reads
// entitlement truth from the mirror.
type PlanRecord struct {
	UserID                string    `json:"userId"`
	PlanID                string    `json:"planId,omitempty"`
	PlanName              PlanName  `json:"planName"`
	PaymentID             string    `json:"paymentId,omitempty"`
	PaymentStatus         string    `json:"paymentStatus,omitempty"`
	SubscriptionType      string    `json:"subscriptionType,omitempty"`
	SubscriptionStartDate time.Time `json:"subscriptionStartDate"`
	SubscriptionEndDate   time.Time `json:"subscriptionEndDate"`
	TotalPrice            float64   `json:"totalPrice"`
	BasePrice             float64   `json:"basePrice,omitempty"`
	TotalAds              int       `json:"totalAds"`
	ValidityDays          int       `json:"validityDays"`
	IsActive              bool      `json:"isActive"`
	SelectedFeatures      []string  `json:"selectedFeatures"`
	MaxAdsPerMonth        int       `json:"max_ads_per_month"`
	AdsUsed               int       `json:"adsUsed"`

	// LastUsageDate is the instant of the last successful consumption,
	// stored as an RFC3339 string. It stays a string rather than a
	// time.Time so that a malformed value (seen in old records) can be
	// detected and handled by the billing-period policy instead of
	// failing the whole document decode. Empty means never used.
	// Plan mutations must not touch it; only actual consumption does.
	LastUsageDate string `json:"lastUsageDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether the subscription window has ended as of now.
func (r *PlanRecord) Expired(now time.Time) bool {
	return now.After(r.SubscriptionEndDate)
}

// PlanStatus is a read-only report of a plan's current state, including
// what a topup would look like if purchased now.
type PlanStatus struct {
	PlanName       PlanName  `json:"plan_name"`
	IsActive       bool      `json:"is_active"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	DaysRemaining  int       `json:"days_remaining"`
	DaysElapsed    int       `json:"days_elapsed"`
	TotalAds       int       `json:"total_ads"`
	AdsUsed        int       `json:"ads_used"`
	MaxAdsPerMonth int       `json:"max_ads_per_month"`
	LastUsageDate  string    `json:"last_usage_date,omitempty"`

	Topup TopupPreview `json:"topup_info"`
}

// TopupPreview describes the window and allowance a topup of the current
// plan would grant if purchased now.
type TopupPreview struct {
	CanTopup        bool      `json:"can_topup"`
	NextPeriodStart time.Time `json:"next_period_start"`
	NextPeriodEnd   time.Time `json:"next_period_end"`
	TopupAds        int       `json:"topup_ads"`
	MonthlyLimit    int       `json:"topup_monthly_limit"`
}
