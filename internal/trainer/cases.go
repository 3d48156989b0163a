package trainer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
	"github.com/mind-engage/cms485-trainer/internal/grading"
	"github.com/mind-engage/cms485-trainer/internal/notify"
	"github.com/mind-engage/cms485-trainer/internal/progress"
	"github.com/mind-engage/cms485-trainer/internal/session"
)

// BoardView is a snapshot of one case board.
type BoardView struct {
	CaseID     string            `json:"case_id"`
	Placements map[string]string `json:"placements"`
	Order      []string          `json:"order"`
	Complete   bool              `json:"complete"`
}

func boardView(l *session.Learner, c casebook.Case) BoardView {
	b := l.Board(c.ID)
	return BoardView{CaseID: c.ID, Placements: b.Placements(), Order: b.Order(), Complete: b.AllFilled(c)}
}

func (s *Service) Board(learnerID, caseID string) (BoardView, error) {
	c, err := s.Catalog.Case(caseID)
	if err != nil {
		return BoardView{}, err
	}
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	return boardView(l, c), nil
}

// Place assigns chipID to boxID. The first placement on an empty board
// starts the case's stage timer.
func (s *Service) Place(ctx context.Context, learnerID, caseID, boxID, chipID string) (BoardView, error) {
	c, err := s.Catalog.Case(caseID)
	if err != nil {
		return BoardView{}, err
	}
	if _, ok := c.Box(boxID); !ok {
		return BoardView{}, fmt.Errorf("%w: box %s", ErrNotFound, boxID)
	}
	chip, ok := c.Chip(chipID)
	if !ok {
		return BoardView{}, fmt.Errorf("%w: chip %s", ErrNotFound, chipID)
	}
	if chip.BoxTarget != boxID {
		return BoardView{}, fmt.Errorf("%w: %s targets %s", ErrInvalidPlacement, chipID, chip.BoxTarget)
	}

	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	b := l.Board(caseID)
	if b.Empty() {
		if stage := s.stageFor(c); stage != "" {
			if err := l.Recorder.MarkStarted(ctx, stage); err != nil {
				log.Printf("mark started %s for %s: %v", stage, learnerID, err)
			}
		}
	}
	b.Place(boxID, chipID)
	return boardView(l, c), nil
}

func (s *Service) Remove(learnerID, caseID, boxID string) (BoardView, error) {
	c, err := s.Catalog.Case(caseID)
	if err != nil {
		return BoardView{}, err
	}
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	l.Board(caseID).Remove(boxID)
	return boardView(l, c), nil
}

func (s *Service) ResetBoard(learnerID, caseID string) (BoardView, error) {
	c, err := s.Catalog.Case(caseID)
	if err != nil {
		return BoardView{}, err
	}
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	l.Board(caseID).Reset()
	return boardView(l, c), nil
}

type SubmitOptions struct {
	LearnerName string
	PrizeID     string
}

type CaseResult struct {
	Verdict  grading.Verdict    `json:"verdict"`
	Passed   bool               `json:"passed"`
	Feedback []grading.Feedback `json:"feedback"`
}

// SubmitCase grades a fully filled board and records the result on the
// case's stage.
func (s *Service) SubmitCase(ctx context.Context, learnerID, caseID string, opts SubmitOptions) (CaseResult, error) {
	c, err := s.Catalog.Case(caseID)
	if err != nil {
		return CaseResult{}, err
	}
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()

	b := l.Board(caseID)
	if !b.AllFilled(c) {
		return CaseResult{}, ErrIncomplete
	}
	placements := b.Placements()
	v := s.Grader.Grade(c, placements, b.Order())
	res := CaseResult{
		Verdict:  v,
		Passed:   grading.Passed(v, c.PassThreshold()),
		Feedback: grading.Explain(c, placements, v),
	}
	countSubmission(v, res.Passed)

	if stage := s.stageFor(c); stage != "" {
		err := l.Recorder.MarkCompleted(ctx, stage, progress.Completion{
			Score:   v.Percent,
			Correct: intPtr(len(v.Correct)),
			Total:   intPtr(len(c.Boxes)),
			Passed:  res.Passed,
			Meta: progress.Meta{
				"caseId":      c.ID,
				"policy":      string(v.Policy),
				"points":      v.Score,
				"outOf":       v.Total,
				"safetyFirst": v.SafetyFirst,
				"forfeited":   v.Forfeited,
				"incorrect":   v.Incorrect,
			},
		})
		if err != nil {
			return CaseResult{}, err
		}
	}

	if c.Stage == progress.StageCaseChallenge {
		s.Notifier.Notify(notify.ChallengeResult{
			LearnerName: opts.LearnerName,
			CaseID:      c.ID,
			Correct:     v.Correct,
			Incorrect:   v.Incorrect,
			SafetyFirst: v.SafetyFirst,
			TotalBoxes:  len(c.Boxes),
			PrizeID:     opts.PrizeID,
			Timestamp:   s.Now().UTC().Format(time.RFC3339),
		})
	}
	log.Printf("case submitted: learner=%s case=%s score=%d/%d forfeited=%v", learnerID, c.ID, v.Score, v.Total, v.Forfeited)
	return res, nil
}

func intPtr(v int) *int { return &v }
