package models

// DashboardSummary is the aggregate view served to the landing page.
type DashboardSummary struct {
	TotalRisks       int            `json:"total_risks"`
	RisksByStatus    map[string]int `json:"risks_by_status"`
	RisksBySeverity  map[string]int `json:"risks_by_severity"`
	TopOpenRisks     []*Risk        `json:"top_open_risks"`
	TotalControls    int            `json:"total_controls"`
	ControlsByStatus map[string]int `json:"controls_by_status"`
	ImplementedRatio float64        `json:"implemented_ratio"`
}
