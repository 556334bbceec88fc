// internal/game/normalize.go
//
// Guess normalisation.
// Responsibilities:
//   - Fold case and ё to е, repair Latin lookalike letters inside Cyrillic words.
//   - Collapse whitespace so resubmissions compare equal.
//   - Split normalised text into a word set for lenient subset matching.

package game

import (
	"strings"
	"unicode"
)

// Normalizer folds guesses and secret words into a comparable form.
type Normalizer interface {
	Normalize(s string) string
}

// NormalizerFunc adapts a plain function to Normalizer.
type NormalizerFunc func(string) string

func (f NormalizerFunc) Normalize(s string) string { return f(s) }

// latinLookalikes maps Latin letters that render like Cyrillic ones.
// Applied only inside words that already contain Cyrillic.
var latinLookalikes = map[rune]rune{
	'a': 'а', 'b': 'в', 'c': 'с', 'e': 'е', 'h': 'н', 'k': 'к',
	'm': 'м', 'o': 'о', 'p': 'р', 't': 'т', 'x': 'х', 'y': 'у',
}

// RussianNormalizer lowercases, folds ё to е, repairs mixed-script words
// and collapses whitespace.
type RussianNormalizer struct{}

func (RussianNormalizer) Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")

	var (
		out  strings.Builder
		word []rune
	)
	flush := func() {
		if hasCyrillic(word) {
			for i, r := range word {
				if c, ok := latinLookalikes[r]; ok {
					word[i] = c
				}
			}
		}
		out.WriteString(string(word))
		word = word[:0]
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			word = append(word, r)
			continue
		}
		flush()
		out.WriteRune(r)
	}
	flush()
	return strings.Join(strings.Fields(out.String()), " ")
}

func hasCyrillic(word []rune) bool {
	for _, r := range word {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// Tokenize splits normalized text into its set of letter-only words.
func Tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func isSubset(sub, super map[string]struct{}) bool {
	for w := range sub {
		if _, ok := super[w]; !ok {
			return false
		}
	}
	return true
}
