package database_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contest_lifecycle/internal/domain/inbox"
	"contest_lifecycle/internal/domain/lifecycle"
	"contest_lifecycle/internal/infra/database"
)

func newMockRepo(t *testing.T) (*database.PostgresLifecycleRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return database.NewPostgresLifecycleRepository(db), mock
}

var now = time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

func TestFindEventCandidates(t *testing.T) {
	repo, mock := newMockRepo(t)
	b := []time.Time{
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	rows := sqlmock.NewRows([]string{"id", "title", "start_at", "end_at", "first_review_start_at", "first_review_end_at",
		"second_review_start_at", "second_review_end_at", "stage", "is_public", "deleted", "updated_at"}).
		AddRow(int64(4), "Spring Reads", b[0], b[1], b[2], b[3], b[4], b[5], int64(1), true, false, b[0])

	mock.ExpectQuery(regexp.QuoteMeta("FROM events")).WithArgs(now).WillReturnRows(rows)

	events, err := repo.FindEventCandidates(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, int64(4), e.ID)
	assert.Equal(t, lifecycle.EventPosting, e.Stage)
	assert.Equal(t, b[3], e.Boundaries.FirstReviewEnd)
	assert.Equal(t, b[1], e.Boundaries.End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindEventCandidates_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM events").WillReturnError(errors.New("connection refused"))

	_, err := repo.FindEventCandidates(context.Background(), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFindTermsCandidates_NullSchedule(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "scheduled_applied_at", "stage", "is_public", "deleted", "updated_at"}).
		AddRow(int64(2), at, int64(0), false, false, at).
		AddRow(int64(3), nil, int64(0), false, false, at)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY scheduled_applied_at, id")).WithArgs(now).WillReturnRows(rows)

	terms, err := repo.FindTermsCandidates(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	require.NotNil(t, terms[0].ScheduledAppliedAt)
	assert.Equal(t, at, *terms[0].ScheduledAppliedAt)
	assert.Nil(t, terms[1].ScheduledAppliedAt)
}

func TestFindNotificationCandidates(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "title", "public_date", "public_end_date", "stage", "is_public", "deleted", "updated_at"}).
		AddRow(int64(8), "Maintenance", start, end, int64(0), true, false, start)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).WithArgs(now).WillReturnRows(rows)

	items, err := repo.FindNotificationCandidates(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Maintenance", items[0].Title)
	assert.Equal(t, end, *items[0].PublicEndDate)
	assert.Equal(t, lifecycle.NotificationActive, items[0].Stage)
}

func TestWithinTx_EventTransitionCommits(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events")).
		WithArgs(3, true, now, int64(4), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM reviews")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(10)).AddRow(int64(11)))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(int64(1), "Voting is open", "EVENT_STAGE", now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(77)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO message_deliveries")).
		WithArgs(int64(77), now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	var delivered int
	err := repo.WithinTx(context.Background(), time.Second, func(ctx context.Context, tx lifecycle.Tx) error {
		if err := tx.UpdateEventStage(ctx, 4, lifecycle.EventPosting, lifecycle.EventVoting, true, now); err != nil {
			return err
		}
		ids, err := tx.ListEventReviewerIDs(ctx, 4)
		if err != nil {
			return err
		}
		assert.Equal(t, []int64{10, 11}, ids)
		msg := &inbox.Message{AuthorID: 1, Body: "Voting is open", Type: inbox.MessageTypeEventStage, CreatedAt: now}
		if err := tx.CreateMessage(ctx, msg); err != nil {
			return err
		}
		assert.Equal(t, int64(77), msg.ID)
		delivered, err = tx.CreateDeliveries(ctx, msg.ID, ids, now)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_StaleStageRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE events")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM events")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), time.Second, func(ctx context.Context, tx lifecycle.Tx) error {
		return tx.UpdateEventStage(ctx, 4, lifecycle.EventPreStart, lifecycle.EventPosting, true, now)
	})
	assert.ErrorIs(t, err, lifecycle.ErrStaleStage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_MissingNotification(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(1, now, int64(9), 0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM notifications")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), time.Second, func(ctx context.Context, tx lifecycle.Tx) error {
		return tx.ExpireNotification(ctx, 9, now)
	})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_TermsSwapInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET is_public = FALSE")).
		WithArgs(now, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE terms SET stage = $1, is_public = TRUE")).
		WithArgs(1, now, int64(2), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), time.Second, func(ctx context.Context, tx lifecycle.Tx) error {
		n, err := tx.UnpublishVisibleTerms(ctx, 2, now)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(1), n)
		return tx.ApplyTerms(ctx, 2, now)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDeliveries_EmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), 0, func(ctx context.Context, tx lifecycle.Tx) error {
		n, err := tx.CreateDeliveries(ctx, 1, nil, now)
		assert.Zero(t, n)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
