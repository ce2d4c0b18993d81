package models

import (
	"math"
	"time"
)

type MatchStatus string

const (
	// MatchStatusOpen: created by a player, waiting for more members.
	MatchStatusOpen MatchStatus = "open"
	// MatchStatusFull: four members, waiting for everyone to confirm.
	MatchStatusFull MatchStatus = "full"
	// MatchStatusNotified: created by the batch matchmaking run, invitations sent.
	MatchStatusNotified MatchStatus = "notified"
	// MatchStatusConfirmed: every member confirmed attendance.
	MatchStatusConfirmed MatchStatus = "confirmed"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCanceled  MatchStatus = "canceled"
)

func (s MatchStatus) Terminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusCanceled
}

// CancellationReason enumerates every way a match can be closed early.
// The set is closed on purpose: Message switches over all values so a new
// reason without a player-facing text fails review, not production.
type CancellationReason string

const (
	ReasonVoluntaryDeparture  CancellationReason = "voluntary_departure"
	ReasonNoConfirmations     CancellationReason = "no_confirmations"
	ReasonInsufficientPlayers CancellationReason = "insufficient_players"
	ReasonCourtUnavailable    CancellationReason = "court_unavailable"
	ReasonWaitingExpired      CancellationReason = "waiting_expired"
	ReasonNoReplacementFound  CancellationReason = "no_replacement_found"
)

func (r CancellationReason) Valid() bool {
	switch r {
	case ReasonVoluntaryDeparture, ReasonNoConfirmations, ReasonInsufficientPlayers,
		ReasonCourtUnavailable, ReasonWaitingExpired, ReasonNoReplacementFound:
		return true
	}
	return false
}

// Message returns the player-facing text sent when a match is cancelled for
// this reason.
func (r CancellationReason) Message() string {
	switch r {
	case ReasonVoluntaryDeparture:
		return "Your match was cancelled because a player withdrew."
	case ReasonNoConfirmations:
		return "Your match was cancelled because no confirmations were received in time."
	case ReasonInsufficientPlayers:
		return "Your match was cancelled because there were not enough players left."
	case ReasonCourtUnavailable:
		return "Your match was cancelled because the court is no longer available."
	case ReasonWaitingExpired:
		return "Your match was cancelled because it stayed incomplete for too long."
	case ReasonNoReplacementFound:
		return "Your match was cancelled because no replacement player could be found."
	default:
		return "Your match was cancelled."
	}
}

// Match is the unit the lifecycle engine works on. PlayerIDs holds at most
// four members in pairing order; for a balanced group the partnerships are
// positions (0,3) and (1,2). Notifications is present only for matches
// created by the batch matchmaking path, with exactly one record per member.
type Match struct {
	ID            int                  `json:"id" db:"id"`
	CourtID       int                  `json:"court_id" db:"court_id"`
	PlayerIDs     []int                `json:"player_ids" db:"player_ids"`
	ConfirmedIDs  []int                `json:"confirmed_ids" db:"confirmed_ids"` // legacy convenience view
	ScheduledAt   time.Time            `json:"scheduled_at" db:"scheduled_at"`
	Status        MatchStatus          `json:"status" db:"status"`
	AverageLevel  float64              `json:"average_level" db:"average_level"`
	Category      int                  `json:"category" db:"category"`
	Reason        *CancellationReason  `json:"reason,omitempty" db:"reason"`
	Notifications []ConfirmationRecord `json:"notifications,omitempty" db:"notifications"`
	Proposal      *ReplacementProposal `json:"proposal,omitempty" db:"proposal"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`

	// Optional related entities, populated by the service layer.
	Court   *Court   `json:"court,omitempty" db:"-"`
	Players []Player `json:"players,omitempty" db:"-"`
}

func (m *Match) HasPlayer(id int) bool {
	for _, pid := range m.PlayerIDs {
		if pid == id {
			return true
		}
	}
	return false
}

func (m *Match) HasConfirmed(id int) bool {
	for _, pid := range m.ConfirmedIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// Record returns the player's live confirmation record, or nil. Records in
// the replaced state are audit entries for vacated seats and are skipped.
func (m *Match) Record(playerID int) *ConfirmationRecord {
	for i := range m.Notifications {
		if m.Notifications[i].PlayerID == playerID && m.Notifications[i].State != ConfirmationReplaced {
			return &m.Notifications[i]
		}
	}
	return nil
}

// RecordsConsistent reports whether the live records match the member list
// one-to-one, which every notified match must satisfy. Replaced audit
// entries do not count against the pairing.
func (m *Match) RecordsConsistent() bool {
	live := 0
	for i := range m.Notifications {
		if m.Notifications[i].State != ConfirmationReplaced {
			live++
		}
	}
	if live != len(m.PlayerIDs) {
		return false
	}
	for _, pid := range m.PlayerIDs {
		if m.Record(pid) == nil {
			return false
		}
	}
	return true
}

// AllConfirmed reports whether every live record is confirmed and the match
// has the required number of members.
func (m *Match) AllConfirmed(required int) bool {
	confirmed := 0
	for i := range m.Notifications {
		switch m.Notifications[i].State {
		case ConfirmationReplaced:
		case ConfirmationConfirmed:
			confirmed++
		default:
			return false
		}
	}
	return confirmed == required
}

// SyncConfirmed rebuilds the legacy ConfirmedIDs view from the records.
func (m *Match) SyncConfirmed() {
	ids := make([]int, 0, len(m.Notifications))
	for i := range m.Notifications {
		if m.Notifications[i].State == ConfirmationConfirmed {
			ids = append(ids, m.Notifications[i].PlayerID)
		}
	}
	m.ConfirmedIDs = ids
}

// SetLevel recomputes the average level and category from member levels.
func (m *Match) SetLevel(levels []float64) {
	if len(levels) == 0 {
		m.AverageLevel = 0
		m.Category = 0
		return
	}
	var sum float64
	for _, l := range levels {
		sum += l
	}
	m.AverageLevel = sum / float64(len(levels))
	m.Category = int(math.Round(m.AverageLevel))
}

// ReplacePlayer swaps the vacated member for the accepted candidate in
// place, keeping the positional pairing convention. The vacated record is
// kept with state replaced as an audit entry; the candidate enters with a
// confirmed record (they accepted explicitly).
func (m *Match) ReplacePlayer(vacatedID int, candidate *Player, now time.Time, window time.Duration) {
	for i, pid := range m.PlayerIDs {
		if pid == vacatedID {
			m.PlayerIDs[i] = candidate.ID
			break
		}
	}
	if len(m.Notifications) > 0 {
		for i := range m.Notifications {
			if m.Notifications[i].PlayerID == vacatedID && m.Notifications[i].State != ConfirmationReplaced {
				m.Notifications[i].State = ConfirmationReplaced
				break
			}
		}
		newRec := NewConfirmationRecord(candidate.ID, now, window)
		newRec.State = ConfirmationConfirmed
		responded := now
		newRec.RespondedAt = &responded
		m.Notifications = append(m.Notifications, newRec)
		m.SyncConfirmed()
	} else {
		for i, pid := range m.ConfirmedIDs {
			if pid == vacatedID {
				m.ConfirmedIDs = append(m.ConfirmedIDs[:i], m.ConfirmedIDs[i+1:]...)
				break
			}
		}
		m.ConfirmedIDs = append(m.ConfirmedIDs, candidate.ID)
	}
	m.Proposal = nil
}
