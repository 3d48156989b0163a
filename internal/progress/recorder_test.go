package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/kvstore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRecorder() (*Recorder, *kvstore.Memory, *fakeClock) {
	store := kvstore.NewMemory()
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	return NewRecorder(store, "progress/ana", clk.Now), store, clk
}

func find(t *testing.T, rs []Record, id string) Record {
	t.Helper()
	for _, r := range rs {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("stage %s missing", id)
	return Record{}
}

func TestDefaults(t *testing.T) {
	r, _, _ := newTestRecorder()
	all := r.All(context.Background())
	if len(all) != len(Stages()) {
		t.Fatalf("want %d records, got %d", len(Stages()), len(all))
	}
	for i, s := range Stages() {
		if all[i].ID != s.ID || all[i].Label != s.Label {
			t.Fatalf("record %d = %s/%s", i, all[i].ID, all[i].Label)
		}
		if all[i].StartedAt != nil || all[i].CompletedAt != nil || all[i].Score != nil || all[i].Passed {
			t.Fatalf("record %s not empty: %+v", s.ID, all[i])
		}
	}
}

func TestMarkStarted_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, _, clk := newTestRecorder()
	if err := r.MarkStarted(ctx, StageCalibration); err != nil {
		t.Fatal(err)
	}
	first := *find(t, r.All(ctx), StageCalibration).StartedAt
	clk.Advance(30 * time.Second)
	if err := r.MarkStarted(ctx, StageCalibration); err != nil {
		t.Fatal(err)
	}
	if got := *find(t, r.All(ctx), StageCalibration).StartedAt; got != first {
		t.Fatalf("startedAt moved from %d to %d", first, got)
	}
}

func TestMarkCompleted(t *testing.T) {
	ctx := context.Background()
	r, _, clk := newTestRecorder()
	_ = r.MarkStarted(ctx, StageCaseChallenge)
	clk.Advance(90*time.Second + 600*time.Millisecond)

	err := r.MarkCompleted(ctx, StageCaseChallenge, Completion{
		Score: 83, Correct: ptr(5), Total: ptr(6), Passed: true,
		Meta: Meta{"safetyFirst": true},
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := find(t, r.All(ctx), StageCaseChallenge)
	if rec.DurationSec == nil || *rec.DurationSec != 91 {
		t.Fatalf("duration = %v, want 91", rec.DurationSec)
	}
	if *rec.Score != 83 || *rec.Correct != 5 || *rec.Total != 6 || !rec.Passed {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Meta["safetyFirst"] != true {
		t.Fatalf("meta lost: %v", rec.Meta)
	}

	// retake overwrites
	clk.Advance(10 * time.Second)
	_ = r.MarkCompleted(ctx, StageCaseChallenge, Completion{Score: 40})
	rec = find(t, r.All(ctx), StageCaseChallenge)
	if *rec.Score != 40 || rec.Passed || rec.Correct != nil || rec.Meta != nil {
		t.Fatalf("retake did not overwrite: %+v", rec)
	}
	if *rec.DurationSec != 101 {
		t.Fatalf("duration = %d, want 101", *rec.DurationSec)
	}
}

func TestMarkCompleted_WithoutStartHasNoDuration(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder()
	_ = r.MarkCompleted(ctx, StageCardQuiz, Completion{Score: 150, Passed: true})
	rec := find(t, r.All(ctx), StageCardQuiz)
	if rec.DurationSec != nil {
		t.Fatalf("duration = %d, want nil", *rec.DurationSec)
	}
	if *rec.Score != 100 {
		t.Fatalf("score not clamped: %d", *rec.Score)
	}
}

func TestUnknownStage(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder()
	if err := r.MarkStarted(ctx, "bonus_round"); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("want ErrUnknownStage, got %v", err)
	}
	if err := r.MarkCompleted(ctx, "bonus_round", Completion{}); !errors.Is(err, ErrUnknownStage) {
		t.Fatalf("want ErrUnknownStage, got %v", err)
	}
}

func TestWriteThroughAndReload(t *testing.T) {
	ctx := context.Background()
	r, store, clk := newTestRecorder()
	_ = r.MarkStarted(ctx, StageFinalExam)
	clk.Advance(2 * time.Minute)
	_ = r.MarkCompleted(ctx, StageFinalExam, Completion{Score: 90, Passed: true})

	reloaded := NewRecorder(store, "progress/ana", clk.Now)
	want, got := r.All(ctx), reloaded.All(ctx)
	for i := range want {
		if want[i].ID != got[i].ID || !eqPtr(want[i].StartedAt, got[i].StartedAt) ||
			!eqPtr(want[i].CompletedAt, got[i].CompletedAt) || !eqPtr(want[i].Score, got[i].Score) ||
			!eqPtr(want[i].DurationSec, got[i].DurationSec) || want[i].Passed != got[i].Passed {
			t.Fatalf("stage %s differs after reload: %+v vs %+v", want[i].ID, want[i], got[i])
		}
	}
}

func TestDecode_ReconcilesStages(t *testing.T) {
	raw := []byte(`[
		{"id":"final_exam","label":"Old label","startedAt":1000,"completedAt":61000,"durationSec":60,"score":88,"passed":true,"extra":"x"},
		{"id":"legacy_stage","label":"Gone","score":12}
	]`)
	rs, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != len(Stages()) {
		t.Fatalf("want %d stages, got %d", len(Stages()), len(rs))
	}
	for _, rec := range rs {
		if rec.ID == "legacy_stage" {
			t.Fatal("non-canonical stage kept")
		}
	}
	fe := find(t, rs, StageFinalExam)
	if fe.Label != "Final Audit Exam" || *fe.Score != 88 || *fe.DurationSec != 60 || !fe.Passed {
		t.Fatalf("final_exam not restored: %+v", fe)
	}
	if cal := find(t, rs, StageCalibration); cal.StartedAt != nil {
		t.Fatalf("missing stage should default: %+v", cal)
	}
}

func TestCorruptedStateFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	_ = store.Set(ctx, "progress/bo", []byte("{not json"))
	r := NewRecorder(store, "progress/bo", nil)
	all := r.All(ctx)
	if len(all) != len(Stages()) || all[0].StartedAt != nil {
		t.Fatalf("want defaults, got %+v", all)
	}
	if err := r.MarkStarted(ctx, StageCalibration); err != nil {
		t.Fatalf("recorder should keep working: %v", err)
	}
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRecorder()
	_ = r.MarkCompleted(ctx, StageCalibration, Completion{Score: 100, Passed: true})
	if err := r.ResetAll(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "progress/ana"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("state not cleared: %v", err)
	}
	if rec := find(t, r.All(ctx), StageCalibration); rec.CompletedAt != nil {
		t.Fatalf("record survived reset: %+v", rec)
	}
}

func TestAll_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRecorder()
	_ = r.MarkCompleted(ctx, StageCalibration, Completion{Score: 50, Meta: Meta{"k": "v"}})
	all := r.All(ctx)
	*all[0].Score = 0
	all[0].Meta["k"] = "changed"
	again := find(t, r.All(ctx), StageCalibration)
	if *again.Score != 50 || again.Meta["k"] != "v" {
		t.Fatalf("caller mutated recorder state: %+v", again)
	}
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type flakyStore struct {
	*kvstore.Memory
	failSet bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failSet {
		return errors.New("disk full")
	}
	return s.Memory.Set(ctx, key, value)
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Memory: kvstore.NewMemory(), failSet: true}
	clk := &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
	r := NewRecorder(store, "progress/ana", clk.Now)

	if err := r.MarkStarted(ctx, StageCardQuiz); err == nil {
		t.Fatal("expected save error")
	}
	if err := r.MarkCompleted(ctx, StageCardQuiz, Completion{Score: 80, Passed: true}); err == nil {
		t.Fatal("expected save error")
	}
	rec := find(t, r.All(ctx), StageCardQuiz)
	if rec.StartedAt != nil || rec.Completed() || rec.Passed {
		t.Fatalf("unsaved change visible in memory: %+v", rec)
	}

	store.failSet = false
	clk.Advance(time.Minute)
	if err := r.MarkStarted(ctx, StageCardQuiz); err != nil {
		t.Fatal(err)
	}
	rec = find(t, r.All(ctx), StageCardQuiz)
	if rec.StartedAt == nil || *rec.StartedAt != clk.t.UnixMilli() {
		t.Fatalf("retry did not record start: %+v", rec)
	}
	reloaded := NewRecorder(store, "progress/ana", clk.Now)
	if got := find(t, reloaded.All(ctx), StageCardQuiz); !eqPtr(got.StartedAt, rec.StartedAt) {
		t.Fatalf("storage diverged: %+v vs %+v", got, rec)
	}
}
