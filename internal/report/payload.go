// Package report builds the course-completion payload from attempt records
// and delivers it over every configured reporting channel.
package report

import (
	"math"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/progress"
)

const (
	EventCompleted = "cms485.course.completed"
	ModuleID       = "cms485-poc-trainer"
)

type StageSummary struct {
	StageID     string `json:"stageId"`
	Label       string `json:"label"`
	DurationSec *int64 `json:"durationSec"`
	Score       *int   `json:"score"`
	Correct     *int   `json:"correct"`
	Total       *int   `json:"total"`
	Passed      bool   `json:"passed"`
}

type Improvement struct {
	BaselineScore *int `json:"baselineScore"`
	FinalScore    *int `json:"finalScore"`
	DeltaPercent  *int `json:"deltaPercent"`
}

// Payload is the stable completion contract consumed by external
// collaborators.
type Payload struct {
	Event            string         `json:"event"`
	ModuleID         string         `json:"moduleId"`
	CompletedAt      string         `json:"completedAt"`
	TotalDurationSec int64          `json:"totalDurationSec"`
	Stages           []StageSummary `json:"stages"`
	OverallScore     int            `json:"overallScore"`
	OverallPassed    bool           `json:"overallPassed"`
	Improvement      Improvement    `json:"improvement"`
}

// BuildPayload summarizes the records of one learner as of now.
func BuildPayload(records []progress.Record, now time.Time) Payload {
	p := Payload{
		Event:       EventCompleted,
		ModuleID:    ModuleID,
		CompletedAt: now.UTC().Format(time.RFC3339),
		Stages:      make([]StageSummary, 0, len(records)),
	}

	byID := make(map[string]progress.Record, len(records))
	completed, scoreSum := 0, 0
	allPassed := true
	for _, r := range records {
		byID[r.ID] = r
		p.Stages = append(p.Stages, StageSummary{
			StageID: r.ID, Label: r.Label, DurationSec: r.DurationSec,
			Score: r.Score, Correct: r.Correct, Total: r.Total, Passed: r.Passed,
		})
		if !r.Passed {
			allPassed = false
		}
		if !r.Completed() {
			continue
		}
		completed++
		if r.DurationSec != nil {
			p.TotalDurationSec += *r.DurationSec
		}
		if r.Score != nil {
			scoreSum += *r.Score
		}
	}
	if completed > 0 {
		p.OverallScore = roundInt(float64(scoreSum) / float64(completed))
	}
	p.OverallPassed = completed == len(progress.Stages()) && allPassed

	p.Improvement.BaselineScore = baseline(byID)
	if fin, ok := byID[progress.TerminalStage]; ok && fin.Completed() && fin.Score != nil {
		v := *fin.Score
		p.Improvement.FinalScore = &v
	}
	if p.Improvement.BaselineScore != nil && p.Improvement.FinalScore != nil {
		d := *p.Improvement.FinalScore - *p.Improvement.BaselineScore
		p.Improvement.DeltaPercent = &d
	}
	return p
}

func baseline(byID map[string]progress.Record) *int {
	sum := 0
	for _, id := range progress.BaselineStages {
		r, ok := byID[id]
		if !ok || r.Score == nil {
			return nil
		}
		sum += *r.Score
	}
	v := roundInt(float64(sum) / float64(len(progress.BaselineStages)))
	return &v
}

func roundInt(f float64) int { return int(math.Round(f)) }
