package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/kvstore"
	"github.com/mind-engage/cms485-trainer/internal/progress"
)

func TestManager_GetIsStable(t *testing.T) {
	m := NewManager(kvstore.NewMemory(), nil)
	a := m.Get("ana")
	if m.Get("ana") != a {
		t.Fatal("same learner should map to the same state")
	}
	if m.Get("bo") == a {
		t.Fatal("learners must not share state")
	}
	if m.Len() != 2 {
		t.Fatalf("len = %d", m.Len())
	}
	if a.Recorder.Key() != ProgressKey("ana") {
		t.Fatalf("recorder key = %s", a.Recorder.Key())
	}
}

func TestLearner_Boards(t *testing.T) {
	l := NewManager(kvstore.NewMemory(), nil).Get("ana")
	l.Lock()
	defer l.Unlock()

	b := l.Board("jenkins")
	b.Place("box11", "jk-dx-chf")
	if l.Board("jenkins") != b {
		t.Fatal("board not reused")
	}
	if !l.Board("henderson").Empty() {
		t.Fatal("boards leaked across cases")
	}
	l.ResetBoards()
	if !b.Empty() {
		t.Fatal("reset left placements")
	}
}

func TestManager_ConcurrentGet(t *testing.T) {
	store := kvstore.NewMemory()
	m := NewManager(store, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := m.Get("ana")
			l.Lock()
			defer l.Unlock()
			_ = l.Recorder.MarkStarted(context.Background(), progress.StageCalibration)
		}()
	}
	wg.Wait()
	if m.Len() != 1 {
		t.Fatalf("len = %d", m.Len())
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestManager_EvictIdle(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	m := NewManager(store, clk.Now)

	ana := m.Get("ana")
	if err := ana.Recorder.MarkStarted(ctx, progress.StageCalibration); err != nil {
		t.Fatal(err)
	}
	clk.t = clk.t.Add(30 * time.Minute)
	m.Get("bo")

	busy := m.Get("cy")
	busy.Lock()
	clk.t = clk.t.Add(90 * time.Minute)
	if n := m.EvictIdle(time.Hour); n != 2 {
		t.Fatalf("evicted %d, want 2", n)
	}
	busy.Unlock()
	if m.Len() != 1 {
		t.Fatalf("len = %d, want only the locked learner", m.Len())
	}

	again := m.Get("ana")
	if again == ana {
		t.Fatal("evicted learner was not rebuilt")
	}
	for _, r := range again.Recorder.All(ctx) {
		if r.ID == progress.StageCalibration && r.StartedAt == nil {
			t.Fatal("progress lost on eviction")
		}
	}
}

func TestManager_ResetDoesNotRegister(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	m := NewManager(store, nil)

	_ = m.Get("ana").Recorder.MarkStarted(ctx, progress.StageCalibration)
	m.EvictIdle(-time.Hour)
	if m.Len() != 0 {
		t.Fatalf("len = %d", m.Len())
	}

	for _, id := range []string{"ana", "ghost-1", "ghost-2"} {
		if err := m.Reset(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("reset registered %d learners", m.Len())
	}
	if _, err := store.Get(ctx, ProgressKey("ana")); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("stored progress survived reset: %v", err)
	}
}

func TestManager_ResetResidentLearner(t *testing.T) {
	ctx := context.Background()
	m := NewManager(kvstore.NewMemory(), nil)
	l := m.Get("ana")
	l.Lock()
	l.Board("jenkins").Place("box11", "jk-dx-chf")
	_ = l.Recorder.MarkStarted(ctx, progress.StageCalibration)
	l.Unlock()

	if err := m.Reset(ctx, "ana"); err != nil {
		t.Fatal(err)
	}
	l.Lock()
	defer l.Unlock()
	if !l.Board("jenkins").Empty() {
		t.Fatal("board survived reset")
	}
	for _, r := range l.Recorder.All(ctx) {
		if r.StartedAt != nil {
			t.Fatalf("stage %s survived reset", r.ID)
		}
	}
}
