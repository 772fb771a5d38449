// Package normalize turns free-text test identifiers into canonical
// comparison tokens: transliterated, case-folded, stripped of everything
// that is not a lowercase Latin letter or underscore.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cyrillicToLatin maps each Cyrillic letter to its closest Latin sequence,
// with digraphs for sounds that need two letters. Hard and soft signs have
// no Latin counterpart and vanish.
var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E", 'Ё': "Yo",
	'Ж': "Zh", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L", 'М': "M",
	'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'У': "U",
	'Ф': "F", 'Х': "H", 'Ц': "Ts", 'Ч': "Ch", 'Ш': "Sh", 'Щ': "Sch",
	'Ъ': "", 'Ы': "Y", 'Ь': "", 'Э': "E", 'Ю': "Yu", 'Я': "Ya",
}

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Transliterate converts Cyrillic letters to Latin sequences and folds
// diacritics on everything else. Characters outside both sets pass through.
func Transliterate(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if latin, ok := cyrillicToLatin[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}
	folded, _, err := transform.String(stripAccents, b.String())
	if err != nil {
		return b.String()
	}
	return folded
}

// Normalize produces the canonical token for a raw identifier. Total over
// all strings and idempotent: Normalize(Normalize(s)) == Normalize(s).
//
// Steps, in order: transliterate, lower-case, replace '.'/'-'/whitespace
// with '_', drop anything that is not [a-z_] (digits included), collapse
// runs of '_', trim leading/trailing '_'.
func Normalize(text string) string {
	s := strings.ToLower(Transliterate(text))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.' || r == '-' || unicode.IsSpace(r):
			b.WriteRune('_')
		case r >= 'a' && r <= 'z', r == '_':
			b.WriteRune(r)
		}
	}

	return collapseUnderscores(b.String())
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '_' {
			if !prev {
				b.WriteRune('_')
			}
			prev = true
			continue
		}
		b.WriteRune(r)
		prev = false
	}
	return strings.Trim(b.String(), "_")
}
