package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mind-engage/cms485-trainer/internal/db"
	"github.com/mind-engage/cms485-trainer/internal/outbox"
	"github.com/mind-engage/cms485-trainer/internal/progress"
	"github.com/mind-engage/cms485-trainer/internal/report"
)

func openRepo(t *testing.T, name string) *outbox.EventRepo {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return outbox.NewEventRepo(conn, "")
}

func TestAppendSince(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, "outbox_since")

	for i := 0; i < 3; i++ {
		if _, err := repo.Append(ctx, "ping", "ana", map[string]int{"n": i}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.Append(ctx, "ping", "bo", map[string]int{"n": 99}); err != nil {
		t.Fatal(err)
	}

	all, err := repo.Since(ctx, "ana", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("want 3 events for ana, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Offset <= all[i-1].Offset {
			t.Fatalf("offsets not increasing: %d then %d", all[i-1].Offset, all[i].Offset)
		}
	}
	if all[0].ID == "" || all[0].SiteID != "local" {
		t.Fatalf("event = %+v", all[0])
	}

	rest, _ := repo.Since(ctx, "ana", all[0].Offset, 1)
	if len(rest) != 1 || rest[0].Offset != all[1].Offset {
		t.Fatalf("since/limit = %+v", rest)
	}
}

func TestPostCompletion(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, "outbox_post")

	p := report.BuildPayload([]progress.Record{{ID: progress.StageCalibration}}, time.Now())
	var poster report.Poster = repo
	if err := poster.Post(ctx, "ana", p); err != nil {
		t.Fatal(err)
	}
	evs, err := repo.Since(ctx, "ana", 0, 10)
	if err != nil || len(evs) != 1 {
		t.Fatalf("events = %v, %v", evs, err)
	}
	if evs[0].Type != report.EventCompleted {
		t.Fatalf("type = %s", evs[0].Type)
	}
	var got report.Payload
	if err := json.Unmarshal(evs[0].Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ModuleID != report.ModuleID {
		t.Fatalf("payload = %+v", got)
	}
}
