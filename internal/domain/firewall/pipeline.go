package firewall

import (
	"context"
	"errors"
	"fmt"
)

// ErrClassifierUnavailable indicates a transient semantic-classifier failure.
// The caller must not admit on it; the delivery is retried instead.
var ErrClassifierUnavailable = errors.New("intent classifier unavailable")

// Retryable reports whether err is a transient firewall failure worth a
// redelivery.
func Retryable(err error) bool {
	return errors.Is(err, ErrClassifierUnavailable)
}

const defaultBlockThreshold = 0.8

// Pipeline runs the three inspection stages in fixed order, cheapest first,
// short-circuiting on the first block.
type Pipeline struct {
	classifier IntentClassifier
	threshold  float64
}

func NewPipeline(classifier IntentClassifier, blockThreshold float64) *Pipeline {
	if blockThreshold <= 0 || blockThreshold > 1 {
		blockThreshold = defaultBlockThreshold
	}
	return &Pipeline{classifier: classifier, threshold: blockThreshold}
}

// Inspect produces the single verdict for one submission.
//
// Stage order is fixed: lexical heuristics, then hidden-content detection,
// then semantic intent classification. A lexical hit blocks without reaching
// the semantic stage. Hidden content is at least a flag and always escalates
// to the semantic stage.
func (p *Pipeline) Inspect(ctx context.Context, text string) (Verdict, error) {
	if v, hit := scanLexical(text); hit {
		return v, nil
	}

	hidden := hasHiddenRunes(text)

	intent, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	if intent.Adversarial && intent.Confidence >= p.threshold {
		reason := "adversarial intent"
		if intent.Category != "" {
			reason = "adversarial intent: " + intent.Category
		}
		return Verdict{Outcome: OutcomeBlock, Stage: StageSemantic, Reason: reason}, nil
	}

	if intent.Adversarial {
		// Below the configured confidence: admit but record the reason.
		return Verdict{Outcome: OutcomeFlag, Stage: StageSemantic, Reason: "low-confidence adversarial intent"}, nil
	}

	if hidden {
		return Verdict{Outcome: OutcomeFlag, Stage: StageObfuscation, Reason: "hidden or zero-width content"}, nil
	}

	return Verdict{Outcome: OutcomeAdmit, Stage: StageSemantic}, nil
}
