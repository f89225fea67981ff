package firewall

import "regexp"

// Known adversarial-instruction phrasings. Heuristic, not exhaustive; cheap
// and deterministic, so they run before everything else.
type lexicalPattern struct {
	re       *regexp.Regexp
	category string
}

var lexicalPatterns = []lexicalPattern{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`), "instruction-override"},
	{regexp.MustCompile(`(?i)disregard\s+(all\s+)?(prior|previous)\s+instructions`), "instruction-override"},
	{regexp.MustCompile(`(?i)system\s+override`), "instruction-override"},
	{regexp.MustCompile(`(?i)reveal\s+(the\s+|your\s+)?system\s+prompt`), "instruction-override"},
	{regexp.MustCompile(`(?i)debug\s+mode`), "instruction-override"},
	{regexp.MustCompile(`(?i)developer\s+mode`), "instruction-override"},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+unrestricted`), "role-reassignment"},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\s+\w+`), "role-reassignment"},
	{regexp.MustCompile(`(?i)act\s+as\s+(if\s+you\s+were\s+)?(a\s+)?jailbroken`), "role-reassignment"},
	{regexp.MustCompile(`(?i)\bDAN\s+mode\b`), "role-reassignment"},
	{regexp.MustCompile(`(?i)pretend\s+you\s+have\s+no\s+(rules|restrictions|guidelines)`), "role-reassignment"},
}

// scanLexical returns a block verdict on the first pattern hit. The reason
// names the pattern category only, never the matched text, so detections do
// not guide evasion.
func scanLexical(text string) (Verdict, bool) {
	for _, p := range lexicalPatterns {
		if p.re.MatchString(text) {
			return Verdict{
				Outcome: OutcomeBlock,
				Stage:   StageLexical,
				Reason:  "adversarial instruction pattern: " + p.category,
			}, true
		}
	}
	return Verdict{}, false
}
