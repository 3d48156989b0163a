package kvstore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mind-engage/cms485-trainer/internal/db"
	"github.com/mind-engage/cms485-trainer/internal/kvstore"
)

// exercise runs the common Store contract against s.
func exercise(t *testing.T, s kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("get missing: want ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "learner/ana", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "learner/ana", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := s.Get(ctx, "learner/ana")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Fatalf("got %s", got)
	}
	if err := s.Delete(ctx, "learner/ana"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "learner/ana"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if err := s.Delete(ctx, "learner/ana"); err != nil {
		t.Fatalf("delete missing should be a no-op: %v", err)
	}
}

func TestMemory(t *testing.T) { exercise(t, kvstore.NewMemory()) }

func TestFS(t *testing.T) {
	s, err := kvstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, s)
}

func TestSQL_SQLite(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:kvstore_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	exercise(t, kvstore.NewSQL(conn))
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kvstore.NewMemory()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'X'
	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("store aliased caller buffer: %s", got)
	}
}

func TestBounded(t *testing.T) {
	ctx := context.Background()
	var warned []int
	b := kvstore.NewBounded(kvstore.NewMemory(), 10, 0.9)
	b.OnWarn = func(_ string, used, _ int) { warned = append(warned, used) }

	if err := b.Set(ctx, "k", []byte("12345")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if b.Usage("k") != 5 || b.NearCapacity("k") {
		t.Fatalf("usage=%d near=%v", b.Usage("k"), b.NearCapacity("k"))
	}
	if len(warned) != 0 {
		t.Fatalf("unexpected warning")
	}

	if err := b.Set(ctx, "k", []byte("123456789")); err != nil {
		t.Fatalf("set near: %v", err)
	}
	if !b.NearCapacity("k") || len(warned) != 1 || warned[0] != 9 {
		t.Fatalf("want one warning at 9, got %v", warned)
	}

	err := b.Set(ctx, "k", []byte("12345678901"))
	if !errors.Is(err, kvstore.ErrOverCapacity) {
		t.Fatalf("want ErrOverCapacity, got %v", err)
	}
	got, _ := b.Get(ctx, "k")
	if string(got) != "123456789" {
		t.Fatalf("rejected write must not replace the stored value, got %s", got)
	}
}

func TestBounded_CountsCharactersNotBytes(t *testing.T) {
	b := kvstore.NewBounded(kvstore.NewMemory(), 4, 0.9)
	if err := b.Set(context.Background(), "k", []byte("ñññ")); err != nil {
		t.Fatalf("3 characters fit in 4: %v", err)
	}
	if b.Usage("k") != 3 {
		t.Fatalf("usage = %d", b.Usage("k"))
	}
}

func TestBounded_Defaults(t *testing.T) {
	b := kvstore.NewBounded(kvstore.NewMemory(), 0, 0)
	if b.Capacity() != kvstore.DefaultSuspendBudget {
		t.Fatalf("capacity = %d", b.Capacity())
	}
}

type failStore struct{}

func (failStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (failStore) Set(context.Context, string, []byte) error   { return errors.New("down") }
func (failStore) Delete(context.Context, string) error        { return errors.New("down") }

func TestMirror_OverCapacityKeptInFallback(t *testing.T) {
	ctx := context.Background()
	bounded := kvstore.NewBounded(kvstore.NewMemory(), 8, 0.9)
	fallback := kvstore.NewMemory()
	m := kvstore.NewMirror(bounded, fallback)

	big := []byte(strings.Repeat("x", 20))
	if err := m.Set(ctx, "k", big); err != nil {
		t.Fatalf("over-capacity write must not fail: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != string(big) {
		t.Fatalf("get: %s %v", got, err)
	}
	if _, err := bounded.Get(ctx, "k"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("bounded store should not hold the value: %v", err)
	}
}

func TestMirror_FallbackDown(t *testing.T) {
	ctx := context.Background()
	bounded := kvstore.NewBounded(kvstore.NewMemory(), 64, 0.9)
	m := kvstore.NewMirror(bounded, failStore{})

	if err := m.Set(ctx, "k", []byte("small")); err != nil {
		t.Fatalf("bounded accepted the value, set should succeed: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "small" {
		t.Fatalf("read should fall through to the suspend buffer: %s %v", got, err)
	}
	if err := m.Set(ctx, "k", []byte(strings.Repeat("y", 100))); err == nil {
		t.Fatal("both stores rejected the value, want error")
	}
}

// readFailStore is a Memory whose reads can be switched off.
type readFailStore struct {
	*kvstore.Memory
	failGet bool
}

func (s *readFailStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.failGet {
		return nil, errors.New("down")
	}
	return s.Memory.Get(ctx, key)
}

func TestMirror_OverCapacityDropsStaleBufferValue(t *testing.T) {
	ctx := context.Background()
	bounded := kvstore.NewBounded(kvstore.NewMemory(), 10, 0.9)
	fallback := &readFailStore{Memory: kvstore.NewMemory()}
	m := kvstore.NewMirror(bounded, fallback)

	if err := m.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "k", []byte(strings.Repeat("z", 20))); err != nil {
		t.Fatalf("over-capacity write must not fail: %v", err)
	}
	fallback.failGet = true

	got, err := m.Get(ctx, "k")
	if err == nil || string(got) == "v1" {
		t.Fatalf("read served the superseded value: got=%q err=%v", got, err)
	}
	if bounded.Usage("k") != 0 {
		t.Fatalf("usage = %d, want 0 after clearing", bounded.Usage("k"))
	}
}
