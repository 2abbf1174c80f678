// Package rating turns heterogeneous rating values into scores on a common
// 1 to 5 scale.
package rating

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Phrase maps a set of qualitative terms to a fixed score.
type Phrase struct {
	Score float64  `json:"score" yaml:"score"`
	Terms []string `json:"terms" yaml:"terms"`
}

// DefaultPhrases is consulted in order; the first phrase with a term
// contained in the lowercased input wins.
var DefaultPhrases = []Phrase{
	{Score: 5.0, Terms: []string{"ممتاز", "excellent"}},
	{Score: 4.5, Terms: []string{"جيد جداً", "جيد جدًا", "جيد جدا", "very good"}},
	{Score: 4.0, Terms: []string{"جيد", "good"}},
	{Score: 3.0, Terms: []string{"متوسط", "fair", "average"}},
	{Score: 2.0, Terms: []string{"ضعيف", "poor"}},
}

// Converter converts raw cell values into 1 to 5 scores.
type Converter struct {
	phrases []Phrase
}

// NewConverter returns a converter using the given qualitative phrases.
// A nil slice selects DefaultPhrases.
func NewConverter(phrases []Phrase) *Converter {
	if phrases == nil {
		phrases = DefaultPhrases
	}

	lowered := make([]Phrase, len(phrases))
	for i, p := range phrases {
		terms := make([]string, 0, len(p.Terms))
		for _, term := range p.Terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term != "" {
				terms = append(terms, term)
			}
		}
		lowered[i] = Phrase{Score: p.Score, Terms: terms}
	}

	return &Converter{phrases: lowered}
}

var defaultConverter = NewConverter(nil)

// Convert converts v using the default phrase table.
func Convert(v any) (float64, bool) {
	return defaultConverter.Convert(v)
}

// Convert maps v onto the 1 to 5 scale. It reports false when v is empty,
// unrecognised or numerically out of range.
func (c *Converter) Convert(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case bool:
		return 0, false
	case float64:
		return Scale(val)
	case float32:
		return Scale(float64(val))
	case int:
		return Scale(float64(val))
	case int8:
		return Scale(float64(val))
	case int16:
		return Scale(float64(val))
	case int32:
		return Scale(float64(val))
	case int64:
		return Scale(float64(val))
	case uint:
		return Scale(float64(val))
	case uint8:
		return Scale(float64(val))
	case uint16:
		return Scale(float64(val))
	case uint32:
		return Scale(float64(val))
	case uint64:
		return Scale(float64(val))
	case string:
		return c.convertText(val)
	case fmt.Stringer:
		return c.convertText(val.String())
	default:
		return c.convertText(fmt.Sprint(val))
	}
}

func (c *Converter) convertText(text string) (float64, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return 0, false
	}

	cleaned := strings.ReplaceAll(trimmed, "%", "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, ",", "."))
	// Out-of-range literals parse to ±Inf (or zero on underflow) and are
	// scaled like any other number.
	if num, err := strconv.ParseFloat(cleaned, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		return Scale(num)
	}

	lowered := strings.ToLower(trimmed)
	for _, p := range c.phrases {
		for _, term := range p.Terms {
			if strings.Contains(lowered, term) {
				return p.Score, true
			}
		}
	}

	return 0, false
}

// Scale applies the numeric bands in order:
//
//	[1, 5]    kept as is
//	(0, 1)    fraction, r*4 + 1
//	(5, 10]   ten point scale
//	(10, 100] percentage
//	> 100     percentage capped at 5
//
// Zero, negatives and NaN are unconvertible.
func Scale(num float64) (float64, bool) {
	switch {
	case math.IsNaN(num):
		return 0, false
	case num >= 1 && num <= 5:
		return num, true
	case num > 0 && num < 1:
		return num*4 + 1, true
	case num > 1 && num <= 10:
		return (num/10)*4 + 1, true
	case num > 10 && num <= 100:
		return (num/100)*4 + 1, true
	case num > 100:
		return math.Min((num/100)*4+1, 5.0), true
	}
	return 0, false
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Mean returns the arithmetic mean of values, or 0 when there are none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
