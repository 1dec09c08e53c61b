// Package handler contains HTTP handlers for the Adlens application.
//
// This file implements the plan lifecycle endpoints: selection, status,
// topup, upgrade, projection sync and usage resets.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/adlens/adlens/internal/billing"
	"github.com/adlens/adlens/internal/domain"
	"github.com/adlens/adlens/internal/service"
)

// =============================================================================
// Handler Configuration
// =============================================================================

// PlanHandler handles plan selection and entitlement HTTP requests.
type PlanHandler struct {
	planService service.PlanService
	reconciler  *billing.Reconciler
	logger      *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService service.PlanService, reconciler *billing.Reconciler, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		reconciler:  reconciler,
		logger:      logger,
	}
}

// RegisterRoutes registers plan routes on the mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{userID}/plan", h.Select)
	mux.HandleFunc("GET /api/users/{userID}/plan", h.Status)
	mux.HandleFunc("POST /api/users/{userID}/plan/topup", h.Topup)
	mux.HandleFunc("POST /api/users/{userID}/plan/upgrade", h.Upgrade)
	mux.HandleFunc("POST /api/users/{userID}/plan/sync", h.Sync)
	mux.HandleFunc("POST /api/users/{userID}/plan/fix-quota", h.FixQuota)
	mux.HandleFunc("POST /api/users/{userID}/plan/reset-usage", h.ResetUsage)
	mux.HandleFunc("DELETE /api/users/{userID}/plan", h.Reset)
	mux.HandleFunc("POST /api/plans/reset-usage", h.ResetAllUsage)
}

// =============================================================================
// Request / Response Types
// =============================================================================

type selectPlanRequest struct {
	PlanName         string   `json:"planName"`
	Features         []string `json:"features,omitempty"`
	PaymentID        string   `json:"paymentId,omitempty"`
	PaymentStatus    string   `json:"paymentStatus,omitempty"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

type topupRequest struct {
	PlanName  string   `json:"planName"`
	Features  []string `json:"features,omitempty"`
	TotalAds  *int     `json:"totalAds,omitempty"`
	PaymentID string   `json:"paymentId,omitempty"`
}

type upgradeRequest struct {
	PlanName  string `json:"planName"`
	TotalAds  *int   `json:"totalAds,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
}

// =============================================================================
// Plan Lifecycle
// =============================================================================

// Select creates the initial plan record for a user.
func (h *PlanHandler) Select(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req selectPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("plan.select", "invalid JSON body"))
		return
	}

	record, err := h.planService.Select(r.Context(), userID, billing.SelectParams{
		PlanName:         domain.PlanName(req.PlanName),
		Features:         req.Features,
		PaymentID:        req.PaymentID,
		PaymentStatus:    req.PaymentStatus,
		SubscriptionType: req.SubscriptionType,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// Status reports the current entitlement state, with rollover applied.
func (h *PlanHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	status, err := h.planService.Status(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Topup extends the current plan with another purchase of the same tier.
func (h *PlanHandler) Topup(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("plan.topup", "invalid JSON body"))
		return
	}

	record, err := h.planService.Topup(r.Context(), userID, billing.TopupParams{
		PlanName:         domain.PlanName(req.PlanName),
		Features:         req.Features,
		TotalAdsOverride: req.TotalAds,
		PaymentID:        req.PaymentID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Upgrade moves the plan to a strictly higher tier.
func (h *PlanHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("plan.upgrade", "invalid JSON body"))
		return
	}

	record, err := h.planService.Upgrade(r.Context(), userID, billing.UpgradeParams{
		PlanName:         domain.PlanName(req.PlanName),
		TotalAdsOverride: req.TotalAds,
		PaymentID:        req.PaymentID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// =============================================================================
// Maintenance
// =============================================================================

// Sync repairs the profile projection from the authoritative plan record.
func (h *PlanHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if err := h.planService.SyncProjection(r.Context(), userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "subscription data synced",
		"userId":  userID,
	})
}

// FixQuota repairs drifted quota fields from the plan catalog.
func (h *PlanHandler) FixQuota(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	record, err := h.planService.FixQuota(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "quota repaired",
		"planName":          record.PlanName,
		"totalAds":          record.TotalAds,
		"max_ads_per_month": record.MaxAdsPerMonth,
		"adsUsed":           record.AdsUsed,
		"remainingAds":      record.TotalAds - record.AdsUsed,
	})
}

// ResetUsage zeroes the monthly counter for one user.
func (h *PlanHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if err := h.planService.ResetMonthlyUsage(r.Context(), userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "monthly usage reset",
		"userId":  userID,
	})
}

// ResetAllUsage runs the reconciliation sweep across all plan records.
func (h *PlanHandler) ResetAllUsage(w http.ResponseWriter, r *http.Request) {
	count, err := h.reconciler.Sweep(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "monthly usage sweep complete",
		"resetCount": count,
	})
}

// Reset removes the user's subscription entirely.
func (h *PlanHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	if err := h.planService.Reset(r.Context(), userID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "subscription deleted",
		"userId":  userID,
	})
}
