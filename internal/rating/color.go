package rating

// Band colors used by the map and chart views.
const (
	ColorExcellent = "#10b981"
	ColorGood      = "#3b82f6"
	ColorAverage   = "#fbbf24"
	ColorWeak      = "#f97316"
	ColorPoor      = "#ef4444"
)

// Color returns the display color for a 1 to 5 score.
func Color(score float64) string {
	switch {
	case score >= 4.5:
		return ColorExcellent
	case score >= 4.0:
		return ColorGood
	case score >= 3.0:
		return ColorAverage
	case score >= 2.0:
		return ColorWeak
	default:
		return ColorPoor
	}
}
