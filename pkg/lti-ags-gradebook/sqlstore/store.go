// Package sqlstore implements gradebook.Store on database/sql using $n
// placeholders, which both pgx and modernc sqlite accept.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/gradebook"
)

type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

func New(db *sql.DB) *Store { return &Store{DB: db, Now: time.Now} }

func (s *Store) now() int64 {
	if s.Now == nil {
		return time.Now().Unix()
	}
	return s.Now().Unix()
}

func (s *Store) SaveLaunch(ctx context.Context, l gradebook.Launch) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO lti_launches (learner_id, platform_issuer, deployment_id, context_id, resource_link_id, platform_sub, lineitems_url, scopes, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (learner_id)
		DO UPDATE SET
			platform_issuer=EXCLUDED.platform_issuer,
			deployment_id=EXCLUDED.deployment_id,
			context_id=EXCLUDED.context_id,
			resource_link_id=EXCLUDED.resource_link_id,
			platform_sub=EXCLUDED.platform_sub,
			lineitems_url=EXCLUDED.lineitems_url,
			scopes=EXCLUDED.scopes,
			updated_at=EXCLUDED.updated_at`,
		l.LearnerID, l.PlatformIssuer, l.DeploymentID, l.ContextID, l.ResourceLinkID,
		l.PlatformSub, l.LineItemsURL, strings.Join(l.Scopes, " "), s.now())
	return err
}

func (s *Store) GetLaunch(ctx context.Context, learnerID string) (gradebook.Launch, error) {
	var l gradebook.Launch
	var scopes string
	err := s.DB.QueryRowContext(ctx, `
		SELECT learner_id, platform_issuer, deployment_id, context_id, resource_link_id, platform_sub, lineitems_url, scopes
		FROM lti_launches WHERE learner_id=$1`, learnerID).
		Scan(&l.LearnerID, &l.PlatformIssuer, &l.DeploymentID, &l.ContextID, &l.ResourceLinkID,
			&l.PlatformSub, &l.LineItemsURL, &scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return gradebook.Launch{}, gradebook.ErrNoLaunch
	}
	if err != nil {
		return gradebook.Launch{}, err
	}
	l.Scopes = strings.Fields(scopes)
	return l, nil
}

func (s *Store) UpsertLineItem(ctx context.Context, li gradebook.GradebookLineItem) (gradebook.GradebookLineItem, error) {
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO gradebook_lineitems (activity_id, platform_issuer, deployment_id, context_id, resource_link_id, label, score_max, lineitem_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (activity_id, platform_issuer, deployment_id, context_id, resource_link_id)
		DO UPDATE SET
			label=EXCLUDED.label,
			score_max=EXCLUDED.score_max,
			lineitem_url=EXCLUDED.lineitem_url
		RETURNING id`,
		li.ActivityID, li.PlatformIssuer, li.DeploymentID, li.ContextID, li.ResourceLinkID, li.Label, li.ScoreMax, li.LineItemURL).
		Scan(&li.ID)
	return li, err
}

func (s *Store) FindLineItem(ctx context.Context, activityID, issuer, dep, ctxID, rlID string) (gradebook.GradebookLineItem, error) {
	var li gradebook.GradebookLineItem
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, activity_id, platform_issuer, deployment_id, context_id, resource_link_id, label, score_max, lineitem_url
		FROM gradebook_lineitems
		WHERE activity_id=$1 AND platform_issuer=$2 AND deployment_id=$3 AND context_id=$4 AND resource_link_id=$5`,
		activityID, issuer, dep, ctxID, rlID).
		Scan(&li.ID, &li.ActivityID, &li.PlatformIssuer, &li.DeploymentID, &li.ContextID, &li.ResourceLinkID, &li.Label, &li.ScoreMax, &li.LineItemURL)
	return li, err
}

func (s *Store) MarkSyncPending(ctx context.Context, learnerID string, score float64) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO grade_sync_status (learner_id, status, retries, score_given, updated_at)
		VALUES ($1,'pending',0,$2,$3)
		ON CONFLICT (learner_id)
		DO UPDATE SET status='pending', score_given=EXCLUDED.score_given, updated_at=EXCLUDED.updated_at`,
		learnerID, score, s.now())
	return err
}

func (s *Store) MarkSyncOK(ctx context.Context, learnerID string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE grade_sync_status
		   SET status='ok', last_error='', updated_at=$2
		 WHERE learner_id=$1`, learnerID, s.now())
	return err
}

func (s *Store) MarkSyncFailed(ctx context.Context, learnerID, lastErr string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO grade_sync_status (learner_id, status, retries, last_error, updated_at)
		VALUES ($1,'failed',1,$2,$3)
		ON CONFLICT (learner_id)
		DO UPDATE SET
			status='failed',
			retries=grade_sync_status.retries+1,
			last_error=EXCLUDED.last_error,
			updated_at=EXCLUDED.updated_at`,
		learnerID, lastErr, s.now())
	return err
}

func (s *Store) GetSyncStatus(ctx context.Context, learnerID string) (gradebook.SyncStatus, error) {
	var st gradebook.SyncStatus
	var updated int64
	err := s.DB.QueryRowContext(ctx, `
		SELECT learner_id, status, retries, last_error, score_given, updated_at
		FROM grade_sync_status WHERE learner_id=$1`, learnerID).
		Scan(&st.LearnerID, &st.Status, &st.Retries, &st.LastError, &st.ScoreGiven, &updated)
	if err != nil {
		return gradebook.SyncStatus{}, err
	}
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	return st, nil
}
