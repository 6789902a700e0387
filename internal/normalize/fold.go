package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reHeaderJunk = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
	reNonWord    = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// stripMarks removes combining marks after canonical decomposition.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold lowercases, removes diacritics, trims and collapses whitespace.
// "  Cà  del Bosco " and "ca del bosco" fold to the same key.
func Fold(s string) string {
	s = strings.ToLower(stripMarks(s))
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// CleanHeader is Fold plus removal of punctuation, with "_" and "-" read as spaces.
func CleanHeader(s string) string {
	s = Fold(s)
	s = reHeaderJunk.ReplaceAllString(s, "")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// words splits folded text into alphanumeric tokens.
func words(s string) []string {
	return strings.Fields(reNonWord.ReplaceAllString(Fold(s), " "))
}

// stemPhrase stems each word with the English Snowball stemmer.
func stemPhrase(s string) string {
	ws := strings.Fields(s)
	for i, w := range ws {
		if st, err := snowball.Stem(w, "english", true); err == nil && st != "" {
			ws[i] = st
		}
	}
	return strings.Join(ws, " ")
}

// containsPhrase matches a keyword phrase on word boundaries.
func containsPhrase(text []string, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(text) {
		return false
	}
	for i := 0; i+len(phrase) <= len(text); i++ {
		match := true
		for j := range phrase {
			if text[i+j] != phrase[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
