// internal/domain/lifecycle/repository.go
package lifecycle

import (
	"context"
	"errors"
	"time"

	"contest_lifecycle/internal/domain/inbox"
)

// ErrStaleStage is returned by stage updates when the stored stage no longer
// matches the one the caller read, i.e. another run already moved the row.
var ErrStaleStage = errors.New("stored stage changed since it was read")

// ErrNotFound is returned when the row to update does not exist or is deleted.
var ErrNotFound = errors.New("lifecycle entity not found")

// Repository is the read side of the persistence gateway plus its
// transaction scope. Candidate queries are coarse; callers recompute the stage.
type Repository interface {
	FindEventCandidates(ctx context.Context, now time.Time) ([]*Event, error)
	FindTermsCandidates(ctx context.Context, now time.Time) ([]*Terms, error)
	FindNotificationCandidates(ctx context.Context, now time.Time) ([]*Notification, error)

	// WithinTx runs fn in one transaction bounded by timeout. It commits when
	// fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx Tx) error) error
}

// Tx holds the writes a single transition may perform.
type Tx interface {
	inbox.Writer

	// UpdateEventStage moves an event from stage `from` to `to`. It returns
	// ErrStaleStage when the stored stage is not `from`.
	UpdateEventStage(ctx context.Context, id int64, from, to EventStage, visible bool, at time.Time) error
	ListEventReviewerIDs(ctx context.Context, eventID int64) ([]int64, error)

	// UnpublishVisibleTerms clears the public flag of every terms row except
	// exceptID and returns how many rows changed.
	UnpublishVisibleTerms(ctx context.Context, exceptID int64, at time.Time) (int64, error)
	ApplyTerms(ctx context.Context, id int64, at time.Time) error

	ExpireNotification(ctx context.Context, id int64, at time.Time) error
}
