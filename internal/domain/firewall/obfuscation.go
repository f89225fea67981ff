package firewall

// Invisible and zero-width code points used to hide payloads from the lexical
// stage. A hit never admits on its own: it escalates to the semantic stage.
func hasHiddenRunes(text string) bool {
	for _, r := range text {
		switch {
		case r >= 0x200B && r <= 0x200D: // zero-width space/non-joiner/joiner
			return true
		case r == 0xFEFF: // zero-width no-break space / BOM
			return true
		case r >= 0x2060 && r <= 0x2064: // word joiner, invisible operators
			return true
		case r == 0x00AD: // soft hyphen
			return true
		case r >= 0xE0000 && r <= 0xE007F: // Unicode tag block
			return true
		}
	}
	return false
}
