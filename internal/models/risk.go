package models

import "time"

// Risk statuses
const (
	RiskStatusOpen      = "open"
	RiskStatusMitigated = "mitigated"
	RiskStatusAccepted  = "accepted"
	RiskStatusClosed    = "closed"
)

// Severity bands derived from likelihood x impact (1-25)
const (
	SeverityLow      = "low"      // 1-4
	SeverityMedium   = "medium"   // 5-9
	SeverityHigh     = "high"     // 10-15
	SeverityCritical = "critical" // 16-25
)

// ValidRiskStatus reports whether s is one of the known risk statuses.
func ValidRiskStatus(s string) bool {
	switch s {
	case RiskStatusOpen, RiskStatusMitigated, RiskStatusAccepted, RiskStatusClosed:
		return true
	}
	return false
}

// Risk is a register entry. Score and severity band are derived from
// likelihood and impact, both on a 1-5 scale.
type Risk struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Likelihood    int        `json:"likelihood"`
	Impact        int        `json:"impact"`
	Status        string     `json:"status"`
	OwnerID       *string    `json:"owner_id,omitempty"`
	TreatmentPlan string     `json:"treatment_plan"`
	Tags          []string   `json:"tags"`
	ReviewDate    *time.Time `json:"review_date,omitempty"`
	CreatedBy     *string    `json:"created_by,omitempty"`
	UpdatedBy     *string    `json:"updated_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Score returns likelihood x impact.
func (r *Risk) Score() int {
	return r.Likelihood * r.Impact
}

// SeverityBand maps the score onto the reporting bands used by the
// dashboard.
func (r *Risk) SeverityBand() string {
	return SeverityBandForScore(r.Score())
}

// SeverityBandForScore maps a raw score (1-25) to a band.
func SeverityBandForScore(score int) string {
	switch {
	case score >= 16:
		return SeverityCritical
	case score >= 10:
		return SeverityHigh
	case score >= 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskFilter narrows List queries. Zero values mean "no filter".
type RiskFilter struct {
	Status   string
	Category string
	OwnerID  string
}
