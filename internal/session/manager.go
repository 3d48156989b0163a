// Package session keeps per-learner working state: one placement board per
// case and the learner's attempt recorder.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/kvstore"
	"github.com/mind-engage/cms485-trainer/internal/placement"
	"github.com/mind-engage/cms485-trainer/internal/progress"
)

// ProgressKey is the storage key of a learner's attempt records.
func ProgressKey(learnerID string) string { return "progress/" + learnerID }

// Learner is the state of one learner. Callers hold the lock for the whole
// of a state transition.
type Learner struct {
	ID       string
	Recorder *progress.Recorder

	mu     sync.Mutex
	boards map[string]*placement.Board

	lastSeen time.Time // guarded by Manager.mu
}

func (l *Learner) Lock()   { l.mu.Lock() }
func (l *Learner) Unlock() { l.mu.Unlock() }

// Board returns the board for caseID, creating it on first use. The caller
// must hold the lock.
func (l *Learner) Board(caseID string) *placement.Board {
	b, ok := l.boards[caseID]
	if !ok {
		b = placement.NewBoard()
		l.boards[caseID] = b
	}
	return b
}

// ResetBoards clears every board. The caller must hold the lock.
func (l *Learner) ResetBoards() {
	for _, b := range l.boards {
		b.Reset()
	}
}

// Manager owns the learners touched since their last eviction. Progress is
// written through to the store, so an evicted learner is rebuilt from it on
// the next Get; only unsubmitted board placements are lost.
type Manager struct {
	store kvstore.Store
	now   progress.Clock

	mu       sync.Mutex
	learners map[string]*Learner
}

func NewManager(store kvstore.Store, now progress.Clock) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now, learners: map[string]*Learner{}}
}

// Get returns the learner's state, creating it on first use.
func (m *Manager) Get(learnerID string) *Learner {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.learners[learnerID]
	if !ok {
		l = &Learner{
			ID:       learnerID,
			Recorder: progress.NewRecorder(m.store, ProgressKey(learnerID), m.now),
			boards:   map[string]*placement.Board{},
		}
		m.learners[learnerID] = l
	}
	l.lastSeen = m.now()
	return l
}

// Reset clears a learner's boards and stored progress. A learner that is
// not resident is cleared in the store only and stays unregistered.
func (m *Manager) Reset(ctx context.Context, learnerID string) error {
	m.mu.Lock()
	l, ok := m.learners[learnerID]
	if !ok {
		// held so a concurrent Get cannot load the records being deleted
		defer m.mu.Unlock()
		return progress.NewRecorder(m.store, ProgressKey(learnerID), m.now).ResetAll(ctx)
	}
	m.mu.Unlock()
	l.Lock()
	defer l.Unlock()
	l.ResetBoards()
	return l.Recorder.ResetAll(ctx)
}

// EvictIdle drops learners not seen for longer than maxIdle and returns how
// many went. A learner whose lock is held is skipped.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxIdle)
	n := 0
	for id, l := range m.learners {
		if !l.lastSeen.Before(cutoff) || !l.mu.TryLock() {
			continue
		}
		delete(m.learners, id)
		l.mu.Unlock()
		n++
	}
	return n
}

// RunEvictor calls EvictIdle every interval until ctx is done.
func (m *Manager) RunEvictor(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.EvictIdle(maxIdle); n > 0 {
				log.Printf("sessions: evicted %d idle learners", n)
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.learners)
}
