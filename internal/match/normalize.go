package match

import (
	"strings"
	"unicode"

	"github.com/recallapp/recall/internal/store"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison only (lowercase, no
// diacritics, dashes to spaces) so "jan-novak" matches "Jan Novák". Names
// are stored as entered; never persist the normalized form.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

// FindPersonByName returns the person whose stored name matches the given
// name after normalization, or nil when nobody matches.
func FindPersonByName(persons []store.Person, name string) *store.Person {
	want := NormalizePersonName(name)
	if want == "" {
		return nil
	}
	for i := range persons {
		if NormalizePersonName(persons[i].Name) == want {
			return &persons[i]
		}
	}
	return nil
}
