package domain

// RiskRecord is a single free-text risk register entry. It is immutable
// pipeline input; the analysis core never persists it.
type RiskRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description"`
	Cause       string   `json:"cause,omitempty"`
	URL         string   `json:"url,omitempty"`
	Cost        *float64 `json:"cost,omitempty"`
	Likelihood  *float64 `json:"likelihood,omitempty"`
	Impact      *float64 `json:"impact,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	Status      string   `json:"status,omitempty"`
}
