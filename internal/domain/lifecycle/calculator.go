// internal/domain/lifecycle/calculator.go
package lifecycle

import "time"

// passed reports whether boundary has been reached at now.
func passed(boundary, now time.Time) bool {
	return !now.Before(boundary)
}

// ComputeEventStage maps an event's boundaries to a stage at now.
// The clauses are evaluated in order and the first match wins, so boundaries
// that overlap or are out of order still resolve to a single stage.
func ComputeEventStage(b EventBoundaries, now time.Time) EventStage {
	switch {
	case now.Before(b.Start) || now.Before(b.FirstReviewStart):
		return EventPreStart
	case now.Before(b.FirstReviewEnd):
		return EventPosting
	case now.Before(b.SecondReviewStart):
		return EventFirstReview
	case now.Before(b.SecondReviewEnd):
		return EventVoting
	case now.Before(b.End):
		return EventViewing
	default:
		return EventEnded
	}
}

// EventVisible is the public flag an event must carry in the given stage.
func EventVisible(s EventStage) bool {
	switch s {
	case EventPosting, EventFirstReview, EventVoting, EventViewing:
		return true
	default:
		return false
	}
}

// ComputeTermsStage reports whether the scheduled apply time has arrived.
// Terms without a schedule are never applied by the batch.
func ComputeTermsStage(scheduledAppliedAt *time.Time, now time.Time) TermsStage {
	if scheduledAppliedAt != nil && passed(*scheduledAppliedAt, now) {
		return TermsApplied
	}
	return TermsPending
}

// ComputeNotificationStage reports whether the public end date has arrived.
// A notification without an end date stays active.
func ComputeNotificationStage(publicEndDate *time.Time, now time.Time) NotificationStage {
	if publicEndDate != nil && passed(*publicEndDate, now) {
		return NotificationExpired
	}
	return NotificationActive
}

// exitBoundary returns the instant at which an event leaves stage s.
// Ended has no exit.
func exitBoundary(b EventBoundaries, s EventStage) (time.Time, bool) {
	switch s {
	case EventPreStart:
		if b.FirstReviewStart.After(b.Start) {
			return b.FirstReviewStart, true
		}
		return b.Start, true
	case EventPosting:
		return b.FirstReviewEnd, true
	case EventFirstReview:
		return b.SecondReviewStart, true
	case EventVoting:
		return b.SecondReviewEnd, true
	case EventViewing:
		return b.End, true
	default:
		return time.Time{}, false
	}
}

// EventNeedsCheck is the coarse candidate filter for the event sweep: the
// boundary closing the stored stage has passed. It does not decide the target
// stage; ComputeEventStage does.
func EventNeedsCheck(e *Event, now time.Time) bool {
	if e.Deleted {
		return false
	}
	exit, ok := exitBoundary(e.Boundaries, e.Stage)
	return ok && passed(exit, now)
}

// TermsNeedsCheck is the candidate filter for the terms sweep.
func TermsNeedsCheck(t *Terms, now time.Time) bool {
	return !t.Deleted && t.Stage == TermsPending &&
		t.ScheduledAppliedAt != nil && passed(*t.ScheduledAppliedAt, now)
}

// NotificationNeedsCheck is the candidate filter for the notification sweep.
func NotificationNeedsCheck(n *Notification, now time.Time) bool {
	return !n.Deleted && n.Stage == NotificationActive &&
		n.PublicEndDate != nil && passed(*n.PublicEndDate, now)
}
