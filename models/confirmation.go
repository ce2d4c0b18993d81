package models

import "time"

// ConfirmationState tracks a single player's reply to a match invitation.
// A record leaves "pending" exactly once and never reverts.
type ConfirmationState string

const (
	ConfirmationPending   ConfirmationState = "pending"
	ConfirmationConfirmed ConfirmationState = "confirmed"
	ConfirmationRejected  ConfirmationState = "rejected"
	ConfirmationTimeout   ConfirmationState = "timeout"
	ConfirmationReplaced  ConfirmationState = "replaced"
)

func (s ConfirmationState) Terminal() bool {
	return s != ConfirmationPending
}

// ConfirmationRecord is one player's invitation inside a match created by the
// batch matchmaking run. Deadline is fixed at creation and never recomputed.
type ConfirmationRecord struct {
	PlayerID    int               `json:"player_id"`
	State       ConfirmationState `json:"state"`
	SentAt      time.Time         `json:"sent_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty"`
	Deadline    time.Time         `json:"deadline"`
}

// Expired reports whether the record is a pending invitation whose deadline
// has passed. The comparison is strict: a deadline equal to now has not
// expired yet.
func (r *ConfirmationRecord) Expired(now time.Time) bool {
	return r.State == ConfirmationPending && now.After(r.Deadline)
}

func NewConfirmationRecord(playerID int, sentAt time.Time, window time.Duration) ConfirmationRecord {
	return ConfirmationRecord{
		PlayerID: playerID,
		State:    ConfirmationPending,
		SentAt:   sentAt,
		Deadline: sentAt.Add(window),
	}
}

// ReplacementProposal is the pending half of the two-phase replacement
// protocol: a candidate has been invited to take a vacated seat but has not
// answered yet. The seat swap happens only on an explicit accept.
type ReplacementProposal struct {
	Token           string    `json:"token"`
	VacatedPlayerID int       `json:"vacated_player_id"`
	CandidateID     int       `json:"candidate_id"`
	Attempt         int       `json:"attempt"`
	ProposedAt      time.Time `json:"proposed_at"`
}
