package casebook

import "strings"

type Category string

const (
	CategoryDiagnostic   Category = "diagnostic"
	CategoryFunctional   Category = "functional"
	CategoryNursingOrder Category = "nursing-order"
	CategoryFrequency    Category = "frequency"
	CategorySafety       Category = "safety"
)

// Policy selects how a case is scored.
type Policy string

const (
	PolicyProportional Policy = "proportional" // points budget, forfeited on safety violations
	PolicyAdditive     Policy = "additive"     // one point per box plus a safety-ordering bonus
)

const DefaultPassPercent = 80

type Remediation struct {
	ChipID     string `json:"chip_id,omitempty"` // explicit key; preferred over WrongLabel
	WrongLabel string `json:"wrong_label"`
	Text       string `json:"text"`
}

type Box struct {
	ID            string        `json:"id"`
	Label         string        `json:"label"`
	CorrectChipID string        `json:"correct_chip_id,omitempty"`
	Why           string        `json:"why,omitempty"`
	Remediation   []Remediation `json:"remediation,omitempty"`
}

type Chip struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	BoxTarget string   `json:"box_target"`
	IsCorrect bool     `json:"is_correct,omitempty"`
	Category  Category `json:"category"`
	TrapNote  string   `json:"trap_note,omitempty"`
}

type Case struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Patient     string `json:"patient,omitempty"`
	Difficulty  string `json:"difficulty"` // easy|medium|hard
	Points      int    `json:"points"`
	Policy      Policy `json:"policy"`
	PassPercent int    `json:"pass_percent,omitempty"`

	// Ordering rule: SafetyBox must be completed no later than PriorityBox.
	SafetyBox   string `json:"safety_box,omitempty"`
	PriorityBox string `json:"priority_box,omitempty"`

	Stage string `json:"stage,omitempty"` // progress stage the case reports to

	Boxes []Box  `json:"boxes"`
	Chips []Chip `json:"chips"`
}

// Exam is a multi-case audit exam graded as one stage.
type Exam struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Stage       string   `json:"stage"`
	PassPercent int      `json:"pass_percent,omitempty"`
	CaseIDs     []string `json:"case_ids"`
}

func (c Case) Box(id string) (Box, bool) {
	for _, b := range c.Boxes {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

func (c Case) Chip(id string) (Chip, bool) {
	for _, ch := range c.Chips {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chip{}, false
}

// ChipsFor lists the chips targeting a box, in authored order.
func (c Case) ChipsFor(boxID string) []Chip {
	out := make([]Chip, 0, 4)
	for _, ch := range c.Chips {
		if ch.BoxTarget == boxID {
			out = append(out, ch)
		}
	}
	return out
}

func (c Case) HasSafetyRule() bool { return strings.TrimSpace(c.SafetyBox) != "" }

func (c Case) PassThreshold() int {
	if c.PassPercent <= 0 {
		return DefaultPassPercent
	}
	return c.PassPercent
}

func (e Exam) PassThreshold() int {
	if e.PassPercent <= 0 {
		return DefaultPassPercent
	}
	return e.PassPercent
}

// LearnerView returns a copy with the answer key removed: no correctness
// flags, correct chip ids, explanations or remediation.
func (c Case) LearnerView() Case {
	out := c
	out.Boxes = make([]Box, len(c.Boxes))
	for i, b := range c.Boxes {
		out.Boxes[i] = Box{ID: b.ID, Label: b.Label}
	}
	out.Chips = make([]Chip, len(c.Chips))
	for i, ch := range c.Chips {
		out.Chips[i] = Chip{ID: ch.ID, Label: ch.Label, BoxTarget: ch.BoxTarget, Category: ch.Category}
	}
	return out
}

// clone deep-copies the slices a caller could mutate.
func (c Case) clone() Case {
	out := c
	out.Boxes = make([]Box, len(c.Boxes))
	for i, b := range c.Boxes {
		b.Remediation = append([]Remediation(nil), b.Remediation...)
		out.Boxes[i] = b
	}
	out.Chips = append([]Chip(nil), c.Chips...)
	return out
}

func (e Exam) clone() Exam {
	out := e
	out.CaseIDs = append([]string(nil), e.CaseIDs...)
	return out
}
