package catalog

import (
	"strings"

	"github.com/Zhima-Mochi/sushistore/internal/domain/sushi"
)

// Search returns the records of snapshot whose recipe contains every
// requested ingredient, in snapshot order.
func Search(snapshot []sushi.Sushi, ingredients []string) []sushi.Sushi {
	var out []sushi.Sushi
	for _, rec := range snapshot {
		if rec.HasAll(ingredients) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// Recommendation renders matches as a one-line message.
func Recommendation(matches []sushi.Sushi) string {
	if len(matches) == 0 {
		return "No sushi matches your criteria."
	}
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.Key()
	}
	return "You might enjoy: " + strings.Join(keys, ", ")
}
