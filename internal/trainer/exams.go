package trainer

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
	"github.com/mind-engage/cms485-trainer/internal/grading"
	"github.com/mind-engage/cms485-trainer/internal/metrics"
	"github.com/mind-engage/cms485-trainer/internal/progress"
)

type ExamCaseResult struct {
	Verdict  grading.Verdict    `json:"verdict"`
	Feedback []grading.Feedback `json:"feedback"`
}

type ExamResult struct {
	ExamID  string           `json:"exam_id"`
	Score   int              `json:"score"` // percent over all cases
	Points  int              `json:"points"`
	OutOf   int              `json:"out_of"`
	Passed  bool             `json:"passed"`
	Results []ExamCaseResult `json:"results"`
}

// SubmitExam grades every case of the exam with proportional forfeiture and
// records the combined percentage on the exam's stage.
func (s *Service) SubmitExam(ctx context.Context, learnerID, examID string) (ExamResult, error) {
	e, err := s.Catalog.Exam(examID)
	if err != nil {
		return ExamResult{}, err
	}
	cases := make([]casebook.Case, 0, len(e.CaseIDs))
	for _, id := range e.CaseIDs {
		c, err := s.Catalog.Case(id)
		if err != nil {
			return ExamResult{}, err
		}
		cases = append(cases, c)
	}

	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()

	for _, c := range cases {
		if !l.Board(c.ID).AllFilled(c) {
			return ExamResult{}, fmt.Errorf("%w: case %s", ErrIncomplete, c.ID)
		}
	}

	res := ExamResult{ExamID: e.ID, Results: make([]ExamCaseResult, 0, len(cases))}
	correct, boxes := 0, 0
	for _, c := range cases {
		b := l.Board(c.ID)
		placements := b.Placements()
		v := s.Exams.Grade(c, placements, b.Order())
		res.Points += v.Score
		res.OutOf += v.Total
		correct += len(v.Correct)
		boxes += len(c.Boxes)
		res.Results = append(res.Results, ExamCaseResult{Verdict: v, Feedback: grading.Explain(c, placements, v)})
	}
	if res.OutOf > 0 {
		res.Score = int(math.Round(float64(res.Points) / float64(res.OutOf) * 100))
	}
	res.Passed = res.Score >= e.PassThreshold()
	metrics.Submissions.WithLabelValues("exam", examOutcome(res.Passed)).Inc()

	if e.Stage != "" {
		err := l.Recorder.MarkCompleted(ctx, e.Stage, progress.Completion{
			Score:   res.Score,
			Correct: intPtr(correct),
			Total:   intPtr(boxes),
			Passed:  res.Passed,
			Meta: progress.Meta{
				"examId": e.ID,
				"points": res.Points,
				"outOf":  res.OutOf,
			},
		})
		if err != nil {
			return ExamResult{}, err
		}
	}
	log.Printf("exam submitted: learner=%s exam=%s score=%d passed=%v", learnerID, e.ID, res.Score, res.Passed)
	return res, nil
}

func examOutcome(passed bool) string {
	if passed {
		return "passed"
	}
	return "failed"
}
