package threat

// Level is the presentation-level risk bucket of a score.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// Classify maps a 0–100 risk score to its display level:
//
//	0–25   → Low
//	26–50  → Medium
//	51–75  → High
//	76–100 → Critical
//
// Scores are not validated; negatives fall into Low and anything above 100
// into Critical.
func Classify(score int) Level {
	switch {
	case score <= 25:
		return LevelLow
	case score <= 50:
		return LevelMedium
	case score <= 75:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Color returns the text colour token used to render a score.
func Color(score int) string {
	switch Classify(score) {
	case LevelLow:
		return "text-green-400"
	case LevelMedium:
		return "text-yellow-400"
	case LevelHigh:
		return "text-orange-400"
	default:
		return "text-red-400"
	}
}

// BadgeColor returns the background and border classes for a risk badge.
func BadgeColor(score int) string {
	switch Classify(score) {
	case LevelLow:
		return "bg-green-500/20 border-green-500"
	case LevelMedium:
		return "bg-yellow-500/20 border-yellow-500"
	case LevelHigh:
		return "bg-orange-500/20 border-orange-500"
	default:
		return "bg-red-500/20 border-red-500"
	}
}
