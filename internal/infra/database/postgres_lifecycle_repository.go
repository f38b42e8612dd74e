// internal/infra/database/postgres_lifecycle_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"contest_lifecycle/internal/domain/inbox"
	"contest_lifecycle/internal/domain/lifecycle"

	"github.com/lib/pq" // For pq.Array
)

const eventColumns = `id, title, start_at, end_at, first_review_start_at, first_review_end_at,
	second_review_start_at, second_review_end_at, stage, is_public, deleted, updated_at`

// eventCandidatesQuery selects events whose current stage's closing boundary
// has passed. Stage 0 closes at the later of start_at and first_review_start_at.
const eventCandidatesQuery = `SELECT ` + eventColumns + `
	FROM events
	WHERE deleted = FALSE AND stage < 5 AND (
		(stage = 0 AND GREATEST(start_at, first_review_start_at) <= $1) OR
		(stage = 1 AND first_review_end_at <= $1) OR
		(stage = 2 AND second_review_start_at <= $1) OR
		(stage = 3 AND second_review_end_at <= $1) OR
		(stage = 4 AND end_at <= $1)
	)
	ORDER BY id`

const termsCandidatesQuery = `SELECT id, scheduled_applied_at, stage, is_public, deleted, updated_at
	FROM terms
	WHERE deleted = FALSE AND stage = 0
	  AND scheduled_applied_at IS NOT NULL AND scheduled_applied_at <= $1
	ORDER BY scheduled_applied_at, id` // oldest first so the newest revision ends up public

const notificationCandidatesQuery = `SELECT id, title, public_date, public_end_date, stage, is_public, deleted, updated_at
	FROM notifications
	WHERE deleted = FALSE AND stage = 0
	  AND public_end_date IS NOT NULL AND public_end_date <= $1
	ORDER BY id`

type PostgresLifecycleRepository struct {
	db *sql.DB
}

func NewPostgresLifecycleRepository(db *sql.DB) *PostgresLifecycleRepository {
	return &PostgresLifecycleRepository{db: db}
}

// Ping verifies connectivity to Postgres.
func (r *PostgresLifecycleRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresLifecycleRepository) FindEventCandidates(ctx context.Context, now time.Time) ([]*lifecycle.Event, error) {
	rows, err := r.db.QueryContext(ctx, eventCandidatesQuery, now)
	if err != nil {
		return nil, fmt.Errorf("error querying event candidates: %w", err)
	}
	defer rows.Close()

	events := make([]*lifecycle.Event, 0)
	for rows.Next() {
		e := &lifecycle.Event{}
		var stage int
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Boundaries.Start, &e.Boundaries.End,
			&e.Boundaries.FirstReviewStart, &e.Boundaries.FirstReviewEnd,
			&e.Boundaries.SecondReviewStart, &e.Boundaries.SecondReviewEnd,
			&stage, &e.IsPublic, &e.Deleted, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning event candidate: %w", err)
		}
		e.Stage = lifecycle.EventStage(stage)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event candidates: %w", err)
	}
	return events, nil
}

func (r *PostgresLifecycleRepository) FindTermsCandidates(ctx context.Context, now time.Time) ([]*lifecycle.Terms, error) {
	rows, err := r.db.QueryContext(ctx, termsCandidatesQuery, now)
	if err != nil {
		return nil, fmt.Errorf("error querying terms candidates: %w", err)
	}
	defer rows.Close()

	terms := make([]*lifecycle.Terms, 0)
	for rows.Next() {
		t := &lifecycle.Terms{}
		var (
			scheduled sql.NullTime
			stage     int
		)
		if err := rows.Scan(&t.ID, &scheduled, &stage, &t.IsPublic, &t.Deleted, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning terms candidate: %w", err)
		}
		t.ScheduledAppliedAt = nullTimePtr(scheduled)
		t.Stage = lifecycle.TermsStage(stage)
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating terms candidates: %w", err)
	}
	return terms, nil
}

func (r *PostgresLifecycleRepository) FindNotificationCandidates(ctx context.Context, now time.Time) ([]*lifecycle.Notification, error) {
	rows, err := r.db.QueryContext(ctx, notificationCandidatesQuery, now)
	if err != nil {
		return nil, fmt.Errorf("error querying notification candidates: %w", err)
	}
	defer rows.Close()

	items := make([]*lifecycle.Notification, 0)
	for rows.Next() {
		n := &lifecycle.Notification{}
		var (
			end   sql.NullTime
			stage int
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.PublicDate, &end, &stage, &n.IsPublic, &n.Deleted, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification candidate: %w", err)
		}
		n.PublicEndDate = nullTimePtr(end)
		n.Stage = lifecycle.NotificationStage(stage)
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification candidates: %w", err)
	}
	return items, nil
}

// WithinTx runs fn in a read-committed transaction bounded by timeout.
func (r *PostgresLifecycleRepository) WithinTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx lifecycle.Tx) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	txn, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if err := fn(ctx, &postgresTx{tx: txn}); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// postgresTx implements lifecycle.Tx on one *sql.Tx.
type postgresTx struct {
	tx *sql.Tx
}

// casMiss explains why a compare-and-set update touched no row.
func (p *postgresTx) casMiss(ctx context.Context, table string, id int64) error {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + table + ` WHERE id = $1 AND deleted = FALSE)`
	if err := p.tx.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("error checking %s %d: %w", table, id, err)
	}
	if !exists {
		return lifecycle.ErrNotFound
	}
	return lifecycle.ErrStaleStage
}

func (p *postgresTx) execCAS(ctx context.Context, table string, id int64, query string, args ...interface{}) error {
	res, err := p.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating %s %d: %w", table, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for %s %d: %w", table, id, err)
	}
	if affected == 0 {
		return p.casMiss(ctx, table, id)
	}
	return nil
}

func (p *postgresTx) UpdateEventStage(ctx context.Context, id int64, from, to lifecycle.EventStage, visible bool, at time.Time) error {
	query := `UPDATE events
               SET stage = $1, is_public = $2, updated_at = $3
               WHERE id = $4 AND stage = $5 AND deleted = FALSE`
	return p.execCAS(ctx, "events", id, query, int(to), visible, at, id, int(from))
}

func (p *postgresTx) ListEventReviewerIDs(ctx context.Context, eventID int64) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM reviews
               WHERE event_id = $1 AND deleted = FALSE
               ORDER BY user_id`
	rows, err := p.tx.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("error querying reviewers of event %d: %w", eventID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reviewer id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviewers: %w", err)
	}
	return ids, nil
}

func (p *postgresTx) UnpublishVisibleTerms(ctx context.Context, exceptID int64, at time.Time) (int64, error) {
	query := `UPDATE terms SET is_public = FALSE, updated_at = $1
               WHERE is_public = TRUE AND id <> $2`
	res, err := p.tx.ExecContext(ctx, query, at, exceptID)
	if err != nil {
		return 0, fmt.Errorf("error unpublishing terms: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows for terms: %w", err)
	}
	return n, nil
}

func (p *postgresTx) ApplyTerms(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE terms SET stage = $1, is_public = TRUE, updated_at = $2
               WHERE id = $3 AND stage = $4 AND deleted = FALSE`
	return p.execCAS(ctx, "terms", id, query, int(lifecycle.TermsApplied), at, id, int(lifecycle.TermsPending))
}

func (p *postgresTx) ExpireNotification(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE notifications SET stage = $1, is_public = FALSE, updated_at = $2
               WHERE id = $3 AND stage = $4 AND deleted = FALSE`
	return p.execCAS(ctx, "notifications", id, query, int(lifecycle.NotificationExpired), at, id, int(lifecycle.NotificationActive))
}

func (p *postgresTx) CreateMessage(ctx context.Context, m *inbox.Message) error {
	query := `INSERT INTO messages (author_id, body, type, created_at)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	if err := p.tx.QueryRowContext(ctx, query, m.AuthorID, m.Body, string(m.Type), m.CreatedAt).Scan(&m.ID); err != nil {
		return fmt.Errorf("error creating message: %w", err)
	}
	return nil
}

func (p *postgresTx) CreateDeliveries(ctx context.Context, messageID int64, recipientIDs []int64, at time.Time) (int, error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	query := `INSERT INTO message_deliveries (message_id, recipient_id, is_read, created_at)
               SELECT $1, r, FALSE, $2 FROM unnest($3::bigint[]) AS r
               ON CONFLICT (message_id, recipient_id) DO NOTHING`
	res, err := p.tx.ExecContext(ctx, query, messageID, at, pq.Array(recipientIDs))
	if err != nil {
		return 0, fmt.Errorf("error creating deliveries for message %d: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading affected rows for deliveries: %w", err)
	}
	return int(n), nil
}
