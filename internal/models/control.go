package models

import "time"

// Control types
const (
	ControlTypePreventive = "preventive"
	ControlTypeDetective  = "detective"
	ControlTypeCorrective = "corrective"
)

// Control statuses
const (
	ControlStatusPlanned     = "planned"
	ControlStatusImplemented = "implemented"
	ControlStatusRetired     = "retired"
)

// ValidControlType reports whether t is one of the known control types.
func ValidControlType(t string) bool {
	switch t {
	case ControlTypePreventive, ControlTypeDetective, ControlTypeCorrective:
		return true
	}
	return false
}

// ValidControlStatus reports whether s is one of the known control statuses.
func ValidControlStatus(s string) bool {
	switch s {
	case ControlStatusPlanned, ControlStatusImplemented, ControlStatusRetired:
		return true
	}
	return false
}

// Control is a mitigation attached to a risk.
type Control struct {
	ID            string    `json:"id"`
	RiskID        string    `json:"risk_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	Effectiveness int       `json:"effectiveness"`
	Status        string    `json:"status"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	UpdatedBy     *string   `json:"updated_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
