package grading

import "github.com/mind-engage/cms485-trainer/internal/casebook"

// ExplainWrongChoice finds the remediation text for chipID placed on boxID.
// An entry keyed to the chip wins; then a label-fragment match; then the
// box's first entry. ok is false when the chip or box is unknown or the box
// has no remediation at all.
func ExplainWrongChoice(c casebook.Case, boxID, chipID string) (casebook.Remediation, bool) {
	chip, ok := c.Chip(chipID)
	if !ok {
		return casebook.Remediation{}, false
	}
	box, ok := c.Box(boxID)
	if !ok || len(box.Remediation) == 0 {
		return casebook.Remediation{}, false
	}
	for _, r := range box.Remediation {
		if r.ChipID != "" && r.ChipID == chip.ID {
			return r, true
		}
	}
	for _, r := range box.Remediation {
		if fragmentMatches(chip.Label, r.WrongLabel) {
			return r, true
		}
	}
	return box.Remediation[0], true
}

// Feedback explains one incorrect box after grading.
type Feedback struct {
	BoxID        string `json:"box_id"`
	BoxLabel     string `json:"box_label"`
	ChosenChipID string `json:"chosen_chip_id,omitempty"`
	ChosenLabel  string `json:"chosen_label,omitempty"`
	TrapNote     string `json:"trap_note,omitempty"`
	CorrectLabel string `json:"correct_label"`
	Why          string `json:"why,omitempty"`
	Remediation  string `json:"remediation,omitempty"`
}

// Explain builds feedback for every incorrect box of a verdict. It never
// changes the score.
func Explain(c casebook.Case, placements map[string]string, v Verdict) []Feedback {
	out := make([]Feedback, 0, len(v.Incorrect))
	for _, boxID := range v.Incorrect {
		box, ok := c.Box(boxID)
		if !ok {
			continue
		}
		fb := Feedback{BoxID: box.ID, BoxLabel: box.Label, Why: box.Why}
		if correct, ok := c.Chip(box.CorrectChipID); ok {
			fb.CorrectLabel = correct.Label
		}
		if chipID, ok := placements[boxID]; ok {
			fb.ChosenChipID = chipID
			if ch, ok := c.Chip(chipID); ok {
				fb.ChosenLabel = ch.Label
				fb.TrapNote = ch.TrapNote
			}
			if r, ok := ExplainWrongChoice(c, boxID, chipID); ok {
				fb.Remediation = r.Text
			}
		}
		out = append(out, fb)
	}
	return out
}
