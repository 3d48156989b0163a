// Package gradebook posts course results back to an LTI platform through
// Assignment and Grade Services (AGS).
package gradebook

import (
	"context"
	"errors"
	"time"
)

var ErrNoLaunch = errors.New("no LTI launch recorded for learner")

// Activity is the gradable item the tool reports, one line item per
// platform resource link.
type Activity struct {
	ID     string
	Title  string
	MaxPts float64
}

// Launch is the AGS context captured when a learner launched the tool.
type Launch struct {
	LearnerID                                               string
	PlatformIssuer, DeploymentID, ContextID, ResourceLinkID string
	PlatformSub                                             string // platform user id for score posts
	LineItemsURL                                            string
	Scopes                                                  []string
}

type GradebookLineItem struct {
	ID                                                                  int64
	ActivityID, PlatformIssuer, DeploymentID, ContextID, ResourceLinkID string
	Label                                                               string
	ScoreMax                                                            float64
	LineItemURL                                                         string // absolute URL
}

type SyncStatus struct {
	LearnerID  string    `json:"learner_id"`
	Status     string    `json:"status"` // pending|ok|failed
	Retries    int       `json:"retries"`
	LastError  string    `json:"last_error,omitempty"`
	ScoreGiven float64   `json:"score_given"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists launches, line items and per-learner sync status.
// sqlstore.Store is the database/sql implementation.
type Store interface {
	SaveLaunch(ctx context.Context, l Launch) error
	GetLaunch(ctx context.Context, learnerID string) (Launch, error) // ErrNoLaunch when absent

	UpsertLineItem(ctx context.Context, li GradebookLineItem) (GradebookLineItem, error)
	FindLineItem(ctx context.Context, activityID, issuer, dep, ctxID, rlID string) (GradebookLineItem, error)

	MarkSyncPending(ctx context.Context, learnerID string, score float64) error
	MarkSyncOK(ctx context.Context, learnerID string) error
	MarkSyncFailed(ctx context.Context, learnerID, lastErr string) error
	GetSyncStatus(ctx context.Context, learnerID string) (SyncStatus, error)
}

type LineItem struct {
	ID, Label, ResourceID, ResourceLinkID string
	ScoreMaximum                          float64
}

type CreateLineItemReq struct {
	Label          string
	ScoreMaximum   float64
	ResourceID     string
	ResourceLinkID string
}

type Score struct {
	UserID, ActivityProgress, GradingProgress string
	ScoreGiven, ScoreMaximum                  float64
	Timestamp                                 time.Time
}

type AGSClient interface {
	ListLineItems(ctx context.Context, lineItemsURL string, q map[string]string) ([]LineItem, error)
	CreateLineItem(ctx context.Context, lineItemsURL string, req CreateLineItemReq) (LineItem, error)
	PostScore(ctx context.Context, lineItemURL string, s Score) error
}
