package grading

import (
	"reflect"
	"testing"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
)

func loadCase(t *testing.T, id string) casebook.Case {
	t.Helper()
	cat, err := casebook.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	c, err := cat.Case(id)
	if err != nil {
		t.Fatalf("case %s: %v", id, err)
	}
	return c
}

// allCorrect returns a full correct placement and a completion order that
// follows the case's box order.
func allCorrect(c casebook.Case) (map[string]string, []string) {
	p := map[string]string{}
	order := make([]string, 0, len(c.Boxes))
	for _, b := range c.Boxes {
		p[b.ID] = b.CorrectChipID
		order = append(order, b.ID)
	}
	return p, order
}

func TestJenkinsAllCorrectSafetyFirst(t *testing.T) {
	c := loadCase(t, "jenkins")
	p, order := allCorrect(c) // box15 precedes box21_wound in authored order

	v := NewDefaultGrader().Grade(c, p, order)
	if len(v.Correct) != 5 || len(v.Incorrect) != 0 {
		t.Fatalf("correct=%v incorrect=%v", v.Correct, v.Incorrect)
	}
	if !v.SafetyFirst {
		t.Fatal("expected safetyFirst")
	}
	if v.Score != 6 || v.Total != 6 || v.Tier != TierMaster {
		t.Fatalf("score %d/%d tier %q, want 6/6 master", v.Score, v.Total, v.Tier)
	}
	if v.Percent != 100 || !Passed(v, c.PassThreshold()) {
		t.Fatalf("percent %d, passed %v", v.Percent, Passed(v, c.PassThreshold()))
	}
}

func TestWoundBeforeSafetyForfeitsProportional(t *testing.T) {
	c := loadCase(t, "jenkins")
	p, _ := allCorrect(c)
	order := []string{"box11", "box21_wound", "box18a", "box15", "box21_freq"}

	v := NewDefaultGrader(WithPolicyOverride(casebook.PolicyProportional)).Grade(c, p, order)
	if len(v.Correct) != 5 {
		t.Fatalf("correct = %d, want 5", len(v.Correct))
	}
	if v.SafetyFirst || !v.Forfeited {
		t.Fatalf("safetyFirst=%v forfeited=%v", v.SafetyFirst, v.Forfeited)
	}
	if v.Score != 0 || v.Percent != 0 {
		t.Fatalf("score = %d, want 0", v.Score)
	}

	// Same ordering under the additive policy only loses the bonus.
	a := NewDefaultGrader().Grade(c, p, order)
	if a.Score != 5 || a.Total != 6 || a.Tier != TierProficient {
		t.Fatalf("additive %d/%d %q", a.Score, a.Total, a.Tier)
	}
}

func TestSafetyBoxNeverTouchedForfeits(t *testing.T) {
	c := loadCase(t, "henderson")
	p, order := allCorrect(c)
	delete(p, "box15")
	order = removeID(order, "box15")

	v := NewDefaultGrader().Grade(c, p, order)
	if len(v.Correct) != len(c.Boxes)-1 {
		t.Fatalf("correct = %d", len(v.Correct))
	}
	if v.SafetyFirst || v.Score != 0 {
		t.Fatalf("safetyFirst=%v score=%d, want false/0", v.SafetyFirst, v.Score)
	}
}

func TestPriorityBoxAbsentStillSafetyFirst(t *testing.T) {
	c := loadCase(t, "henderson")
	p, order := allCorrect(c)
	delete(p, "box21_wound")
	order = removeID(order, "box21_wound")

	v := NewDefaultGrader().Grade(c, p, order)
	if !v.SafetyFirst || v.Forfeited {
		t.Fatalf("safetyFirst=%v forfeited=%v", v.SafetyFirst, v.Forfeited)
	}
	// 5 of 6 boxes of 100 points.
	if v.Score != 83 || v.Percent != 83 {
		t.Fatalf("score = %d percent = %d, want 83", v.Score, v.Percent)
	}
}

func TestWrongSafetyChipForfeits(t *testing.T) {
	c := loadCase(t, "henderson")
	p, order := allCorrect(c)
	p["box15"] = "hd-sf-rails"

	v := NewDefaultGrader().Grade(c, p, order)
	if !v.SafetyFirst {
		t.Fatal("ordering should still hold")
	}
	if !v.Forfeited || v.Score != 0 {
		t.Fatalf("forfeited=%v score=%d", v.Forfeited, v.Score)
	}

	lenient := NewDefaultGrader(WithForfeitOnSafetyChip(false)).Grade(c, p, order)
	if lenient.Forfeited || lenient.Score != 83 {
		t.Fatalf("lenient forfeited=%v score=%d", lenient.Forfeited, lenient.Score)
	}
}

func TestEmptyPlacementsAllIncorrect(t *testing.T) {
	c := loadCase(t, "jenkins")
	v := NewDefaultGrader().Grade(c, map[string]string{}, nil)
	if len(v.Correct) != 0 || len(v.Incorrect) != len(c.Boxes) {
		t.Fatalf("correct=%v incorrect=%v", v.Correct, v.Incorrect)
	}
	if v.SafetyFirst || v.Score != 0 || v.Tier != TierNeedsReview {
		t.Fatalf("unexpected verdict %+v", v)
	}

	nilMap := NewDefaultGrader().Grade(c, nil, nil)
	if len(nilMap.Incorrect) != len(c.Boxes) {
		t.Fatal("nil placements should grade as all incorrect")
	}
}

func TestEveryBoxInExactlyOneList(t *testing.T) {
	c := loadCase(t, "henderson")
	p := map[string]string{"box11": "hd-dx-fracture", "box13": "hd-dx-dm", "box15": "hd-sf-hip"}
	v := NewDefaultGrader().Grade(c, p, []string{"box15", "box11", "box13"})

	seen := map[string]int{}
	for _, id := range v.Correct {
		seen[id]++
	}
	for _, id := range v.Incorrect {
		seen[id]++
	}
	for _, b := range c.Boxes {
		if seen[b.ID] != 1 {
			t.Fatalf("box %s appears %d times", b.ID, seen[b.ID])
		}
	}
	if len(seen) != len(c.Boxes) {
		t.Fatalf("verdict lists %d boxes, case has %d", len(seen), len(c.Boxes))
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	c := loadCase(t, "henderson")
	p := map[string]string{"box11": "hd-dx-aftercare", "box15": "hd-sf-hip", "box21_wound": "hd-wd-soak"}
	order := []string{"box15", "box11", "box21_wound"}
	g := NewDefaultGrader()
	first := g.Grade(c, p, order)
	second := g.Grade(c, p, order)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("verdicts differ:\n%+v\n%+v", first, second)
	}
}

func TestCaseWithoutSafetyRule(t *testing.T) {
	c := casebook.Case{
		ID: "plain", Policy: casebook.PolicyAdditive,
		Boxes: []casebook.Box{{ID: "a", CorrectChipID: "a1"}, {ID: "b", CorrectChipID: "b1"}},
	}
	v := NewDefaultGrader().Grade(c, map[string]string{"a": "a1", "b": "b1"}, []string{"b", "a"})
	if v.SafetyChecked || !v.SafetyFirst {
		t.Fatalf("checked=%v first=%v", v.SafetyChecked, v.SafetyFirst)
	}
	if v.Score != 2 || v.Total != 2 || v.Tier != TierMaster {
		t.Fatalf("score %d/%d %q", v.Score, v.Total, v.Tier)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score, total int
		want         Tier
	}{
		{6, 6, TierMaster},
		{5, 6, TierProficient},
		{4, 6, TierDeveloping},
		{3, 6, TierNeedsReview},
		{0, 6, TierNeedsReview},
	}
	for _, tt := range tests {
		if got := TierFor(tt.score, tt.total); got != tt.want {
			t.Errorf("TierFor(%d, %d) = %q, want %q", tt.score, tt.total, got, tt.want)
		}
	}
}

func TestSafetyFirstOrdering(t *testing.T) {
	c := casebook.Case{SafetyBox: "s", PriorityBox: "w"}
	tests := []struct {
		name  string
		order []string
		want  bool
	}{
		{"safety then wound", []string{"s", "w"}, true},
		{"wound then safety", []string{"w", "s"}, false},
		{"safety only", []string{"x", "s"}, true},
		{"wound only", []string{"w"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafetyFirst(c, tt.order); got != tt.want {
				t.Fatalf("SafetyFirst(%v) = %v, want %v", tt.order, got, tt.want)
			}
		})
	}
}

func removeID(s []string, id string) []string {
	out := s[:0:0]
	for _, x := range s {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
