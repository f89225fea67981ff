package analysis

import "context"

// Result of one contract analysis. Raw holds the full JSON document returned
// by the engine; Summary and RiskScore are extracted for the job record.
type Result struct {
	Summary   string  `json:"summary"`
	RiskScore float64 `json:"risk_score"`
	Raw       string  `json:"-"`
}

// Analyzer port for the external inference capability.
type Analyzer interface {
	Analyze(ctx context.Context, contractText string) (*Result, error)
}
