package component

import "strings"

// Atomic-design category buckets, keyed by name fragments.
var categoryHints = []struct {
	category string
	words    []string
}{
	{"atoms", []string{"button", "input", "icon", "badge", "avatar"}},
	{"molecules", []string{"form", "card", "modal", "dialog", "dropdown"}},
	{"organisms", []string{"header", "footer", "sidebar", "navbar", "layout"}},
	{"templates", []string{"page", "template", "view"}},
}

// InferCategory guesses the atomic-design category from a component
// name. Unrecognized names default to "molecules".
func InferCategory(name string) string {
	lower := strings.ToLower(name)

	for _, hint := range categoryHints {
		for _, word := range hint.words {
			if strings.Contains(lower, word) {
				return hint.category
			}
		}
	}

	return "molecules"
}
