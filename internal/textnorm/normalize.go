// Package textnorm folds Arabic and Latin text into a canonical form so that
// spelling variants of the same word compare equal.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacritics covers the harakat and the Quranic annotation marks.
var diacritics = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x06D6, Hi: 0x06DC, Stride: 1},
		{Lo: 0x06DF, Hi: 0x06E8, Stride: 1},
		{Lo: 0x06EA, Hi: 0x06ED, Stride: 1},
	},
}

var letterFolds = map[rune]rune{
	'ة': 'ه',
	'ہ': 'ه',
	'ھ': 'ه',
	'ە': 'ه',
	'ى': 'ي',
	'ئ': 'ي',
	'ؤ': 'و',
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'گ': 'ك',
	'پ': 'ب',
	'چ': 'ج',
	'ژ': 'ز',
}

func foldLetter(r rune) rune {
	if folded, ok := letterFolds[r]; ok {
		return folded
	}
	return r
}

// newFolder builds a fresh transformer chain. Chains keep internal buffers
// and must not be shared between goroutines.
func newFolder() transform.Transformer {
	return transform.Chain(
		norm.NFC,
		runes.Remove(runes.In(diacritics)),
		runes.Map(foldLetter),
	)
}

// Normalize returns the canonical form of text: diacritics removed, letter
// variants folded, lowercased, whitespace collapsed to single spaces and
// trimmed. Empty input yields an empty string.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	folded, _, err := transform.String(newFolder(), text)
	if err != nil {
		folded = text
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// IsArabic reports whether r lies in the Arabic block.
func IsArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

// ScriptRatio returns the fraction of runes in text that belong to the
// Arabic block. An empty string has ratio 0.
func ScriptRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 0
	}

	arabic := 0
	for _, r := range text {
		if IsArabic(r) {
			arabic++
		}
	}

	return float64(arabic) / float64(total)
}

// Prefix returns at most n leading runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
