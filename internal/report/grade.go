package report

import "secscan/internal/model"

// Grade maps a result to a letter grade and a badge color. Any critical
// finding caps the grade at D whatever the score.
func Grade(res model.ScanResult) (grade string, color string) {
	score := res.SecurityScore
	switch {
	case res.Summary.Total == 0:
		return "A+", "brightgreen"
	case res.Summary.Critical > 3:
		return "F", "red"
	case res.Summary.Critical > 0:
		if score < 30 {
			return "F", "red"
		}
		return "D", "orange"
	case score >= 90:
		return "A", "green"
	case score >= 75:
		return "B", "yellowgreen"
	case score >= 50:
		return "C", "yellow"
	case score >= 30:
		return "D", "orange"
	default:
		return "F", "red"
	}
}
