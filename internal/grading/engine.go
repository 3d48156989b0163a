package grading

import (
	"math"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
)

type Tier string

const (
	TierMaster      Tier = "master"
	TierProficient  Tier = "proficient"
	TierDeveloping  Tier = "developing"
	TierNeedsReview Tier = "needs-review"
)

// Verdict is the outcome of grading one case attempt. It is derived from
// the inputs only and never stored by the engine.
type Verdict struct {
	CaseID    string          `json:"case_id"`
	Policy    casebook.Policy `json:"policy"`
	Correct   []string        `json:"correct"`
	Incorrect []string        `json:"incorrect"`

	SafetyChecked bool `json:"safety_checked"` // case defines an ordering rule
	SafetyFirst   bool `json:"safety_first"`
	Forfeited     bool `json:"forfeited"`

	Score   int  `json:"score"`
	Total   int  `json:"total"`
	Percent int  `json:"percent"`
	Tier    Tier `json:"tier,omitempty"` // additive policy only
}

// Strategy scores a case once correctness and ordering are known.
type Strategy interface {
	Score(c casebook.Case, placements map[string]string, v *Verdict)
}

// Grader routes by scoring policy to the matching Strategy.
type Grader interface {
	Grade(c casebook.Case, placements map[string]string, order []string) Verdict
}

type defaultGrader struct {
	strategies map[casebook.Policy]Strategy
	override   casebook.Policy
}

// Engine options

type Option func(*config)

type config struct {
	Override            casebook.Policy // force a policy regardless of the case
	ForfeitOnSafetyChip bool            // wrong safety-category chip zeroes proportional scores
}

func WithPolicyOverride(p casebook.Policy) Option { return func(c *config) { c.Override = p } }
func WithForfeitOnSafetyChip(b bool) Option       { return func(c *config) { c.ForfeitOnSafetyChip = b } }

// NewDefaultGrader installs the built-in scoring strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{ForfeitOnSafetyChip: true}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		override: cfg.Override,
		strategies: map[casebook.Policy]Strategy{
			casebook.PolicyProportional: proportionalStrategy{forfeitOnSafetyChip: cfg.ForfeitOnSafetyChip},
			casebook.PolicyAdditive:     additiveStrategy{},
		},
	}
}

func (g *defaultGrader) Grade(c casebook.Case, placements map[string]string, order []string) Verdict {
	policy := c.Policy
	if g.override != "" {
		policy = g.override
	}
	s, ok := g.strategies[policy]
	if !ok {
		policy = casebook.PolicyProportional
		s = g.strategies[policy]
	}

	v := Verdict{
		CaseID:    c.ID,
		Policy:    policy,
		Correct:   make([]string, 0, len(c.Boxes)),
		Incorrect: make([]string, 0, len(c.Boxes)),
	}
	for _, b := range c.Boxes {
		if chip, ok := placements[b.ID]; ok && chip != "" && chip == b.CorrectChipID {
			v.Correct = append(v.Correct, b.ID)
		} else {
			v.Incorrect = append(v.Incorrect, b.ID)
		}
	}
	v.SafetyChecked = c.HasSafetyRule()
	v.SafetyFirst = SafetyFirst(c, order)
	s.Score(c, placements, &v)
	return v
}

// SafetyFirst evaluates the ordering rule: the safety box must have been
// filled, and the lower-priority box either never filled or filled after it.
// Cases without a safety box always satisfy the rule.
func SafetyFirst(c casebook.Case, order []string) bool {
	if !c.HasSafetyRule() {
		return true
	}
	safetyIdx := indexOf(order, c.SafetyBox)
	if safetyIdx < 0 {
		return false
	}
	if c.PriorityBox == "" {
		return true
	}
	priorityIdx := indexOf(order, c.PriorityBox)
	return priorityIdx < 0 || priorityIdx > safetyIdx
}

// Passed applies a pass threshold (percent) to a verdict.
func Passed(v Verdict, passPercent int) bool {
	return !v.Forfeited && v.Percent >= passPercent
}

// --- Strategies ---

type proportionalStrategy struct{ forfeitOnSafetyChip bool }

func (s proportionalStrategy) Score(c casebook.Case, placements map[string]string, v *Verdict) {
	v.Total = c.Points
	if v.SafetyChecked && !v.SafetyFirst {
		v.Forfeited = true
	}
	if s.forfeitOnSafetyChip && wrongSafetyChip(c, placements, v.Incorrect) {
		v.Forfeited = true
	}
	if v.Forfeited || len(c.Boxes) == 0 {
		v.Score, v.Percent = 0, 0
		return
	}
	v.Score = roundInt(float64(len(v.Correct)) / float64(len(c.Boxes)) * float64(c.Points))
	v.Percent = percent(v.Score, v.Total)
}

type additiveStrategy struct{}

func (additiveStrategy) Score(c casebook.Case, _ map[string]string, v *Verdict) {
	v.Total = len(c.Boxes)
	v.Score = len(v.Correct)
	if v.SafetyChecked {
		v.Total++
		if v.SafetyFirst {
			v.Score++
		}
	}
	v.Percent = percent(v.Score, v.Total)
	v.Tier = TierFor(v.Score, v.Total)
}

// TierFor maps an additive score to its confidence tier.
func TierFor(score, total int) Tier {
	switch {
	case score == total:
		return TierMaster
	case score >= total-1:
		return TierProficient
	case score >= total-2:
		return TierDeveloping
	default:
		return TierNeedsReview
	}
}

// helpers

func wrongSafetyChip(c casebook.Case, placements map[string]string, incorrect []string) bool {
	for _, boxID := range incorrect {
		chipID, ok := placements[boxID]
		if !ok {
			continue
		}
		if ch, ok := c.Chip(chipID); ok && ch.Category == casebook.CategorySafety && !ch.IsCorrect {
			return true
		}
	}
	return false
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return roundInt(float64(score) / float64(total) * 100)
}

func roundInt(f float64) int { return int(math.Round(f)) }
