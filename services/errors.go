package services

import "errors"

// Shared errors used across services and the HTTP mapping layer. Business
// outcomes (leftover players, exhausted candidate pools, unrecoverable
// matches) are reported through result structs, not through these errors.
var (
	ErrNotFound = errors.New("requested resource not found")

	ErrPlayerNotFound = errors.New("player not found")
	ErrMatchNotFound  = errors.New("match not found")
	ErrCourtNotFound  = errors.New("court not found")
	ErrAdminNotFound  = errors.New("admin not found")

	// State errors
	ErrMatchAlreadyTerminal  = errors.New("match is already in a terminal state")
	ErrMatchFull             = errors.New("match already has the maximum number of players")
	ErrNotAMember            = errors.New("player is not a member of this match")
	ErrAlreadyInMatch        = errors.New("player is already in an active match")
	ErrAlreadyConfirmed      = errors.New("player has already responded for this match")
	ErrNoPendingConfirmation = errors.New("player has no pending confirmation")
	ErrNoPendingProposal     = errors.New("no pending replacement proposal for this player")

	// Validation and business rules
	ErrPlayerUnavailable   = errors.New("player is not available for matchmaking")
	ErrLevelIncompatible   = errors.New("player level is not compatible with this match")
	ErrCourtInactive       = errors.New("court is not active")
	ErrSlotNotOffered      = errors.New("court does not offer this time slot")
	ErrInvalidCancelReason = errors.New("invalid cancellation reason")
	ErrInconsistentRecords = errors.New("notified match carries a malformed confirmation record set")
	ErrInvalidCredentials  = errors.New("invalid email or password")
)
