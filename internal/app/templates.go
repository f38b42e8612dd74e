// internal/app/templates.go
package app

import (
	"fmt"

	"contest_lifecycle/internal/domain/lifecycle"
)

// stageMessage returns the body sent to reviewers when an event enters stage.
// Entering pre-start is never announced.
func stageMessage(eventTitle string, stage lifecycle.EventStage) (string, bool) {
	var text string
	switch stage {
	case lifecycle.EventPosting:
		text = "The posting period for \"%s\" has opened. You can now submit your reviews."
	case lifecycle.EventFirstReview:
		text = "Posting for \"%s\" has closed and the first review round has started."
	case lifecycle.EventVoting:
		text = "Voting for \"%s\" is now open."
	case lifecycle.EventViewing:
		text = "Voting for \"%s\" has closed. Results are now available."
	case lifecycle.EventEnded:
		text = "\"%s\" has ended. Thank you for taking part!"
	default:
		return "", false
	}
	return fmt.Sprintf(text, eventTitle), true
}
