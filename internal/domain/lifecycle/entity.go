// internal/domain/lifecycle/entity.go
package lifecycle

import "time"

// EventBoundaries are the six configured instants of a contest event.
type EventBoundaries struct {
	Start             time.Time
	End               time.Time
	FirstReviewStart  time.Time // posting opens
	FirstReviewEnd    time.Time // posting closes, first review begins
	SecondReviewStart time.Time // voting opens
	SecondReviewEnd   time.Time // voting closes, results viewable
}

// Event corresponds to the 'events' table.
type Event struct {
	ID         int64
	Title      string
	Boundaries EventBoundaries
	Stage      EventStage
	IsPublic   bool
	Deleted    bool
	UpdatedAt  time.Time
}

// Terms is one revision of the site terms of service.
type Terms struct {
	ID                 int64
	ScheduledAppliedAt *time.Time
	Stage              TermsStage
	IsPublic           bool
	Deleted            bool
	UpdatedAt          time.Time
}

// Notification is a site-wide announcement shown between its public dates.
type Notification struct {
	ID            int64
	Title         string
	PublicDate    time.Time
	PublicEndDate *time.Time
	Stage         NotificationStage
	IsPublic      bool
	Deleted       bool
	UpdatedAt     time.Time
}
