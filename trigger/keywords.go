package trigger

import "strings"

// normalizeKeywords lowercases and trims the configured trigger keywords,
// dropping empties.
func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// helpTermsFromKeywords derives the bare mention terms that earn a help hint
// when no valid trigger keyword is present: "@squabble" and "/squabble" both
// reduce to "squabble".
func helpTermsFromKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		term := strings.TrimLeft(k, "@/")
		if term == "" || term == k || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func containsAny(lowerText string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lowerText, t) {
			return true
		}
	}
	return false
}
