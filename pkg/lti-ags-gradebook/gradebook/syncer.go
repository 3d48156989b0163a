package gradebook

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Clock func() time.Time

type Syncer struct {
	Store    Store
	AGS      AGSClient
	Activity Activity
	Now      Clock
}

func New(store Store, ags AGSClient, activity Activity, now Clock) *Syncer {
	if now == nil {
		now = time.Now
	}
	if activity.MaxPts <= 0 {
		activity.MaxPts = 100
	}
	return &Syncer{Store: store, AGS: ags, Activity: activity, Now: now}
}

// RecordLaunch stores the learner's latest launch context.
func (s *Syncer) RecordLaunch(ctx context.Context, l Launch) error {
	switch {
	case l.LearnerID == "":
		return errors.New("missing learner id")
	case l.PlatformIssuer == "" || l.ResourceLinkID == "":
		return errors.New("missing platform issuer or resource link")
	case l.PlatformSub == "":
		return errors.New("missing platform user")
	case l.LineItemsURL == "":
		return errors.New("missing lineitems_url")
	}
	return s.Store.SaveLaunch(ctx, l)
}

func (s *Syncer) HasLaunch(ctx context.Context, learnerID string) bool {
	_, err := s.Store.GetLaunch(ctx, learnerID)
	return err == nil
}

// EnsureLineItem finds or creates the activity's line item for the launch's
// resource link, reusing one the platform already has.
func (s *Syncer) EnsureLineItem(ctx context.Context, l Launch) (GradebookLineItem, error) {
	act := s.Activity
	if li, err := s.Store.FindLineItem(ctx, act.ID, l.PlatformIssuer, l.DeploymentID, l.ContextID, l.ResourceLinkID); err == nil && li.LineItemURL != "" {
		return li, nil
	}
	base := GradebookLineItem{
		ActivityID: act.ID, PlatformIssuer: l.PlatformIssuer, DeploymentID: l.DeploymentID,
		ContextID: l.ContextID, ResourceLinkID: l.ResourceLinkID,
	}

	items, err := s.AGS.ListLineItems(ctx, l.LineItemsURL, map[string]string{
		"resource_id":      act.ID,
		"resource_link_id": l.ResourceLinkID,
	})
	if err == nil {
		for _, it := range items {
			if it.ResourceID == act.ID && it.ResourceLinkID == l.ResourceLinkID {
				base.Label, base.ScoreMax, base.LineItemURL = it.Label, it.ScoreMaximum, it.ID
				return s.Store.UpsertLineItem(ctx, base)
			}
		}
	}
	created, err := s.AGS.CreateLineItem(ctx, l.LineItemsURL, CreateLineItemReq{
		Label: act.Title, ScoreMaximum: act.MaxPts, ResourceID: act.ID, ResourceLinkID: l.ResourceLinkID,
	})
	if err != nil {
		return GradebookLineItem{}, fmt.Errorf("create line item: %w", err)
	}
	base.Label, base.ScoreMax, base.LineItemURL = created.Label, created.ScoreMaximum, created.ID
	return s.Store.UpsertLineItem(ctx, base)
}

// SyncCompletion posts the learner's course score as Completed/FullyGraded.
func (s *Syncer) SyncCompletion(ctx context.Context, learnerID string, scoreGiven float64) error {
	l, err := s.Store.GetLaunch(ctx, learnerID)
	if err != nil {
		return err
	}
	_ = s.Store.MarkSyncPending(ctx, learnerID, scoreGiven)

	li, err := s.EnsureLineItem(ctx, l)
	if err != nil {
		_ = s.Store.MarkSyncFailed(ctx, learnerID, err.Error())
		return err
	}
	scoreMax := li.ScoreMax
	if scoreMax <= 0 {
		scoreMax = s.Activity.MaxPts
	}
	if err := s.AGS.PostScore(ctx, li.LineItemURL, Score{
		UserID: l.PlatformSub, ScoreGiven: scoreGiven * scoreMax / 100, ScoreMaximum: scoreMax,
		ActivityProgress: "Completed", GradingProgress: "FullyGraded",
		Timestamp: s.Now(),
	}); err != nil {
		_ = s.Store.MarkSyncFailed(ctx, learnerID, err.Error())
		return err
	}
	return s.Store.MarkSyncOK(ctx, learnerID)
}

func (s *Syncer) Status(ctx context.Context, learnerID string) (SyncStatus, error) {
	return s.Store.GetSyncStatus(ctx, learnerID)
}
