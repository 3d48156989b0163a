// Package outbox is the append-only event log the embedding page polls for
// messages addressed to it.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/cms485-trainer/internal/report"
)

type Event struct {
	Offset    int64           `json:"offset"`
	ID        string          `json:"id"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, typ, key string, data any) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	e := Event{ID: uuid.NewString(), SiteID: r.siteID, Type: typ, Key: key, Data: b, CreatedAt: r.now().UnixMilli()}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (event_id, site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.SiteID, e.Type, e.Key, string(e.Data), e.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

// Since lists events for key with an offset greater than since, oldest
// first.
func (r *EventRepo) Since(ctx context.Context, key string, since int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, event_id, site_id, typ, key, data, created_at
		   FROM event_log
		  WHERE key=$1 AND seq>$2
		  ORDER BY seq
		  LIMIT $3`, key, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0, limit)
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Offset, &e.ID, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Post appends the completion payload for the learner; the embedding page
// picks it up on its next poll.
func (r *EventRepo) Post(ctx context.Context, learnerID string, p report.Payload) error {
	_, err := r.Append(ctx, p.Event, learnerID, p)
	return err
}
