// Package diagnosis maps prediction class ids and confidence values to
// display labels, descriptions and badge styles. It is a pure mapping
// layer with no side effects.
package diagnosis

import "fmt"

// ClassCount is the number of respiratory condition classes the
// classification model distinguishes.
const ClassCount = 7

// Display strings for ids the label table does not cover. The analysis
// service and this application must agree on the class table; an unknown
// id means a newer model, so it is surfaced explicitly instead of
// rendering empty text.
const (
	UnknownLabel       = "Unknown"
	UnknownDescription = "Unrecognized classification. The analysis service returned a condition this application does not know."
)

// labels holds the respiratory condition for each class id.
var labels = [ClassCount]string{
	"Healthy / Normal",
	"Asthma",
	"Bronchiectasis",
	"Bronchiolitis",
	"COPD",
	"LRTI (Lower Respiratory Tract Infection)",
	"Pneumonia",
}

// descriptions holds the patient-facing explanation for each class id.
var descriptions = [ClassCount]string{
	"No abnormal sounds detected. Breathing appears normal.",
	"Asthma detected : May cause wheezing and shortness of breath.",
	"Bronchiectasis detected : Chronic cough and mucus production.",
	"Bronchiolitis detected : Often viral, common in children.",
	"COPD detected : Airflow obstruction with chronic cough/wheezing.",
	"LRTI detected : Includes bronchitis and lower airway infections.",
	"Pneumonia detected : Infection causing crackles, cough, and fever.",
}

// Label returns the condition label for a class id, falling back to
// UnknownLabel for ids outside the table.
func Label(id int) string {
	if id < 0 || id >= ClassCount {
		return UnknownLabel
	}
	return labels[id]
}

// Description returns the condition description for a class id, falling
// back to UnknownDescription for ids outside the table.
func Description(id int) string {
	if id < 0 || id >= ClassCount {
		return UnknownDescription
	}
	return descriptions[id]
}

// Band represents a confidence band derived from threshold values.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Confidence thresholds for band selection.
const (
	highConfidenceThreshold   = 0.90
	mediumConfidenceThreshold = 0.70
)

// ConfidenceBand returns the band for a confidence value:
// high for c >= 0.90, medium for 0.70 <= c < 0.90, low otherwise.
func ConfidenceBand(c float64) Band {
	switch {
	case c >= highConfidenceThreshold:
		return BandHigh
	case c >= mediumConfidenceThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// CSSClass returns the stylesheet class used to render a confidence badge.
func (b Band) CSSClass() string {
	switch b {
	case BandHigh:
		return "badge-green"
	case BandMedium:
		return "badge-yellow"
	default:
		return "badge-red"
	}
}

// ClassCSSClass returns the stylesheet class used to render the condition
// badge for a class id. Ids without a dedicated color use the neutral badge.
func ClassCSSClass(id int) string {
	switch id {
	case 0:
		return "badge-green"
	case 1:
		return "badge-yellow"
	case 2:
		return "badge-orange"
	case 3:
		return "badge-red"
	default:
		return "badge-gray"
	}
}

// FormatPercent renders a probability in [0,1] as a percentage with one
// decimal, e.g. 0.953 -> "95.3%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// ProbabilityRow pairs a condition label with its predicted probability.
type ProbabilityRow struct {
	ClassID     int     `json:"class_id"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"`
}

// ProbabilityRows zips a raw probability vector against the label table in
// index order. Entries beyond the known class table render as Unknown.
func ProbabilityRows(raw []float64) []ProbabilityRow {
	rows := make([]ProbabilityRow, 0, len(raw))
	for i, p := range raw {
		rows = append(rows, ProbabilityRow{
			ClassID:     i,
			Label:       Label(i),
			Probability: p,
			Percent:     FormatPercent(p),
		})
	}
	return rows
}
