package domain

// SubscriptionMirror is the denormalized subscription block embedded in a
// user profile document. It exists so profile readers get quota numbers in
// one fetch; it is never authoritative. The billing engine repairs it from
// the plan record whenever they drift.
type SubscriptionMirror struct {
	PlanType              string   `json:"planType"`
	PlanName              PlanName `json:"planName"`
	Features              []string `json:"features,omitempty"`
	SelectedFeatures      []string `json:"selectedFeatures,omitempty"`
	AdQuota               int      `json:"adQuota"`
	AdsUsed               int      `json:"adsUsed"`
	MaxAdsPerMonth        int      `json:"max_ads_per_month"`
	TotalPrice            float64  `json:"totalPrice"`
	BasePrice             float64  `json:"basePrice,omitempty"`
	ValidityDays          int      `json:"validityDays"`
	SubscriptionStartDate string   `json:"subscriptionStartDate"`
	SubscriptionEndDate   string   `json:"subscriptionEndDate"`
	Status                string   `json:"status"`
	PaymentStatus         string   `json:"paymentStatus,omitempty"`
	PaymentID             string   `json:"paymentId,omitempty"`
	SubscriptionType      string   `json:"subscriptionType,omitempty"`
	UpdatedAt             string   `json:"updatedAt"`
}

// UserProfile is the broader profile document the mirror is attached to.
// Profile shape beyond the subscription block is caller-defined.
type UserProfile struct {
	UserID       string              `json:"userId"`
	Timestamp    string              `json:"timestamp,omitempty"`
	Profile      map[string]any      `json:"userProfile,omitempty"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
	Subscription *SubscriptionMirror `json:"subscription,omitempty"`
	UpdatedAt    string              `json:"updatedAt,omitempty"`
}
