package firewall

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasHiddenRunes(t *testing.T) {
	hidden := []string{
		"a​b",     // zero width space
		"a‌b",     // zero width non-joiner
		"a‍b",     // zero width joiner
		"a\uFEFFb",     // zero width no-break space
		"a⁠b",     // word joiner
		"a­b",     // soft hyphen
		"a\U000E0041b", // tag character
	}
	for _, s := range hidden {
		assert.True(t, hasHiddenRunes(s), "%q should be hidden", s)
	}

	clean := []string{
		"",
		"plain ascii contract text",
		"accented clauses: résiliation, força maior",
		"日本語の契約条項",
		"tabs\tand\nnewlines are fine",
	}
	for _, s := range clean {
		assert.False(t, hasHiddenRunes(s), "%q should be clean", s)
	}
}
