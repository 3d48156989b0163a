// Package progress records per-stage attempt timing and scores for one
// learner and persists them write-through to a kvstore.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/kvstore"
)

var ErrUnknownStage = errors.New("unknown stage")

type Clock func() time.Time

type Recorder struct {
	store kvstore.Store
	key   string
	Now   Clock

	mu      sync.Mutex
	records []Record // nil until first load
}

func NewRecorder(store kvstore.Store, key string, now Clock) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, key: key, Now: now}
}

// Key is the storage key the recorder persists under.
func (r *Recorder) Key() string { return r.key }

// MarkStarted stamps startedAt on the first call only.
func (r *Recorder) MarkStarted(ctx context.Context, stage string) error {
	i, ok := stageIndex(stage)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)
	if r.records[i].StartedAt != nil {
		return nil
	}
	next := clone(r.records)
	next[i].StartedAt = ptr(r.Now().UnixMilli())
	return r.commit(ctx, next)
}

// MarkCompleted overwrites the stage result with the latest attempt.
func (r *Recorder) MarkCompleted(ctx context.Context, stage string, c Completion) error {
	i, ok := stageIndex(stage)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)

	now := r.Now().UnixMilli()
	next := clone(r.records)
	rec := &next[i]
	rec.CompletedAt = ptr(now)
	rec.DurationSec = nil
	if rec.StartedAt != nil {
		rec.DurationSec = ptr(int64(math.Round(float64(now-*rec.StartedAt) / 1000)))
	}
	rec.Score = ptr(clampScore(c.Score))
	rec.Correct = copyPtr(c.Correct)
	rec.Total = copyPtr(c.Total)
	rec.Passed = c.Passed
	rec.Meta = c.Meta
	return r.commit(ctx, next)
}

// All returns a copy of every canonical stage record, in course order.
func (r *Recorder) All(ctx context.Context) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.load(ctx)
	return clone(r.records)
}

// ResetAll clears persisted state; the next read yields fresh defaults.
func (r *Recorder) ResetAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(ctx, r.key); err != nil {
		return err
	}
	r.records = defaults()
	return nil
}

// load reads persisted state once. Missing or unreadable state yields
// defaults; corruption is logged and never surfaced.
func (r *Recorder) load(ctx context.Context) {
	if r.records != nil {
		return
	}
	raw, err := r.store.Get(ctx, r.key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		r.records = defaults()
		return
	case err != nil:
		log.Printf("progress: read %s failed, using defaults: %v", r.key, err)
		r.records = defaults()
		return
	}
	records, err := Decode(raw)
	if err != nil {
		log.Printf("progress: corrupted state at %s, using defaults: %v", r.key, err)
		r.records = defaults()
		return
	}
	r.records = records
}

// commit persists next and only then makes it the cached state.
func (r *Recorder) commit(ctx context.Context, next []Record) error {
	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key, b); err != nil {
		return fmt.Errorf("persist progress: %w", err)
	}
	r.records = next
	return nil
}

// Decode parses a stored record list and reconciles it against the
// canonical stages.
func Decode(raw []byte) ([]Record, error) {
	var stored []Record
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	return reconcile(stored), nil
}

func clampScore(s int) int {
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}
