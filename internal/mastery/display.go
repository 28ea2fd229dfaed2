package mastery

// DifficultyLabel is the coarse difficulty shown to the student.
type DifficultyLabel string

const (
	DifficultyEasier   DifficultyLabel = "easier"
	DifficultyStandard DifficultyLabel = "standard"
	DifficultyHarder   DifficultyLabel = "harder"
)

// DisplayDifficulty maps the adaptive multiplier to a display label.
func DisplayDifficulty(multiplier float64) DifficultyLabel {
	switch {
	case multiplier < 0.9:
		return DifficultyEasier
	case multiplier > 1.1:
		return DifficultyHarder
	default:
		return DifficultyStandard
	}
}
