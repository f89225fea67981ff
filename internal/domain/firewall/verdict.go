package firewall

import "context"

// Outcome enum for a firewall verdict
type Outcome string

const (
	OutcomeAdmit Outcome = "admit"
	OutcomeFlag  Outcome = "flag"
	OutcomeBlock Outcome = "block"
)

// Stage enum naming which stage produced the verdict
type Stage string

const (
	StageLexical     Stage = "lexical"
	StageObfuscation Stage = "obfuscation"
	StageSemantic    Stage = "semantic"
)

// Verdict is the single output of the inspection pipeline for one submission.
// It is ephemeral; only the outcome, stage and a category-level reason ever
// reach storage.
type Verdict struct {
	Outcome Outcome `json:"outcome"`
	Stage   Stage   `json:"stage"`
	Reason  string  `json:"reason,omitempty"`
}

// Intent is the semantic classifier's judgment of a submission.
type Intent struct {
	Adversarial bool    `json:"adversarial"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category,omitempty"`
}

// IntentClassifier port. Implementations must be isolated from the main
// analysis path so a successful injection cannot influence this judgment.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}
