// internal/domain/lifecycle/stage.go
package lifecycle

// EventStage is the workflow position of a contest event. Values are stored as-is.
type EventStage int

const (
	EventPreStart    EventStage = 0
	EventPosting     EventStage = 1
	EventFirstReview EventStage = 2
	EventVoting      EventStage = 3
	EventViewing     EventStage = 4
	EventEnded       EventStage = 5
)

func (s EventStage) String() string {
	switch s {
	case EventPreStart:
		return "pre_start"
	case EventPosting:
		return "posting"
	case EventFirstReview:
		return "first_review"
	case EventVoting:
		return "voting"
	case EventViewing:
		return "viewing"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TermsStage records whether a scheduled terms revision has been applied.
type TermsStage int

const (
	TermsPending TermsStage = 0
	TermsApplied TermsStage = 1
)

// NotificationStage records whether a site notification has expired.
type NotificationStage int

const (
	NotificationActive  NotificationStage = 0
	NotificationExpired NotificationStage = 1
)
