package notify

import (
	"fmt"
	"time"

	"github.com/padeliga/matchday/models"
)

const timeLayout = "Mon 02 Jan 15:04"

// InvitationMessage is sent to each member of a freshly formed match.
func InvitationMessage(playerName, courtName string, scheduledAt, deadline time.Time) string {
	return fmt.Sprintf(
		"Hi %s! You have a match at %s on %s. Reply YES to confirm or NO to pass before %s.",
		playerName, courtName, scheduledAt.Format(timeLayout), deadline.Format(timeLayout),
	)
}

// AllConfirmedMessage announces that every member confirmed.
func AllConfirmedMessage(courtName string, scheduledAt time.Time) string {
	return fmt.Sprintf(
		"Everyone confirmed! Your match at %s on %s is on.",
		courtName, scheduledAt.Format(timeLayout),
	)
}

// ProposalMessage invites a candidate to take a vacated seat.
func ProposalMessage(playerName, courtName string, scheduledAt time.Time, averageLevel float64) string {
	return fmt.Sprintf(
		"Hi %s! A seat opened up in a level %.1f match at %s on %s. Reply YES to take it or NO to pass.",
		playerName, averageLevel, courtName, scheduledAt.Format(timeLayout),
	)
}

// ReplacementMessage tells the remaining members who joined.
func ReplacementMessage(inName, outName string) string {
	return fmt.Sprintf("%s is replacing %s in your match.", inName, outName)
}

// CancellationMessage renders the notice for a cancelled match.
func CancellationMessage(reason models.CancellationReason, scheduledAt time.Time) string {
	return fmt.Sprintf("%s (match of %s)", reason.Message(), scheduledAt.Format(timeLayout))
}
