// Package trainer implements the learner-facing use cases: placing chips,
// submitting cases and the audit exam, stage timing and completion
// reporting.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/casebook"
	"github.com/mind-engage/cms485-trainer/internal/grading"
	"github.com/mind-engage/cms485-trainer/internal/metrics"
	"github.com/mind-engage/cms485-trainer/internal/notify"
	"github.com/mind-engage/cms485-trainer/internal/progress"
	"github.com/mind-engage/cms485-trainer/internal/report"
	"github.com/mind-engage/cms485-trainer/internal/session"
)

var (
	ErrNotFound         = casebook.ErrNotFound
	ErrIncomplete       = errors.New("not every box has a chip")
	ErrInvalidPlacement = errors.New("chip does not belong to this box")
)

// Targets resolves where a learner's completion report is delivered.
type Targets func(learnerID, learnerName string) report.Target

type Service struct {
	Catalog  *casebook.Catalog
	Grader   grading.Grader
	Exams    grading.Grader // audit exam cases, forced proportional
	Sessions *session.Manager
	Reporter *report.Reporter
	Notifier *notify.Notifier
	Targets  Targets
	Now      func() time.Time

	examStage map[string]string // case id -> stage of the exam that owns it
}

func New(catalog *casebook.Catalog, sessions *session.Manager, reporter *report.Reporter, notifier *notify.Notifier, targets Targets) *Service {
	s := &Service{
		Catalog:   catalog,
		Grader:    grading.NewDefaultGrader(),
		Exams:     grading.NewDefaultGrader(grading.WithPolicyOverride(casebook.PolicyProportional)),
		Sessions:  sessions,
		Reporter:  reporter,
		Notifier:  notifier,
		Targets:   targets,
		Now:       time.Now,
		examStage: map[string]string{},
	}
	for _, e := range catalog.Exams() {
		for _, id := range e.CaseIDs {
			s.examStage[id] = e.Stage
		}
	}
	return s
}

// ExamView is an exam with the learner view of each of its cases.
type ExamView struct {
	casebook.Exam
	Cases []casebook.Case `json:"cases"`
}

func (s *Service) Cases() []casebook.Case {
	cs := s.Catalog.Cases()
	out := make([]casebook.Case, len(cs))
	for i, c := range cs {
		out[i] = c.LearnerView()
	}
	return out
}

func (s *Service) Case(id string) (casebook.Case, error) {
	c, err := s.Catalog.Case(id)
	if err != nil {
		return casebook.Case{}, err
	}
	return c.LearnerView(), nil
}

func (s *Service) Exam(id string) (ExamView, error) {
	e, err := s.Catalog.Exam(id)
	if err != nil {
		return ExamView{}, err
	}
	v := ExamView{Exam: e, Cases: make([]casebook.Case, 0, len(e.CaseIDs))}
	for _, cid := range e.CaseIDs {
		c, err := s.Catalog.Case(cid)
		if err != nil {
			return ExamView{}, err
		}
		v.Cases = append(v.Cases, c.LearnerView())
	}
	return v, nil
}

// stageFor is the progress stage a case reports to, directly or through
// the exam that contains it.
func (s *Service) stageFor(c casebook.Case) string {
	if c.Stage != "" {
		return c.Stage
	}
	return s.examStage[c.ID]
}

// --- Stages and progress ---

func (s *Service) StartStage(ctx context.Context, learnerID, stage string) error {
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	return l.Recorder.MarkStarted(ctx, stage)
}

// CompleteStage records a stage graded outside the engine (card quiz, final
// test).
func (s *Service) CompleteStage(ctx context.Context, learnerID, stage string, c progress.Completion) error {
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	return l.Recorder.MarkCompleted(ctx, stage, c)
}

func (s *Service) Progress(ctx context.Context, learnerID string) []progress.Record {
	l := s.Sessions.Get(learnerID)
	l.Lock()
	defer l.Unlock()
	return l.Recorder.All(ctx)
}

// ResetProgress clears the learner's records and every board.
func (s *Service) ResetProgress(ctx context.Context, learnerID string) error {
	if err := s.Sessions.Reset(ctx, learnerID); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	log.Printf("progress reset: learner=%s", learnerID)
	return nil
}

// --- Completion ---

func (s *Service) Completion(ctx context.Context, learnerID string) report.Payload {
	return report.BuildPayload(s.Progress(ctx, learnerID), s.Now())
}

// Report builds the payload and delivers it in the background.
func (s *Service) Report(ctx context.Context, learnerID, learnerName string) report.Payload {
	p := s.Completion(ctx, learnerID)
	if s.Reporter == nil || s.Targets == nil {
		return p
	}
	t := s.Targets(learnerID, learnerName)
	t.LearnerID = learnerID
	if t.LearnerName == "" {
		t.LearnerName = learnerName
	}
	s.Reporter.DeliverAsync(p, t)
	return p
}

func (s *Service) LastReport(learnerID string) (report.Result, bool) {
	if s.Reporter == nil {
		return report.Result{}, false
	}
	return s.Reporter.LastResult(learnerID)
}

func outcome(v grading.Verdict, passed bool) string {
	switch {
	case v.Forfeited:
		return "forfeited"
	case passed:
		return "passed"
	}
	return "failed"
}

func countSubmission(v grading.Verdict, passed bool) {
	metrics.Submissions.WithLabelValues(string(v.Policy), outcome(v, passed)).Inc()
}
