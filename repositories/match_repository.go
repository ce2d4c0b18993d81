package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/padeliga/matchday/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	Update(ctx context.Context, match *models.Match) error
	ListByStatus(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error)
	// ListActive returns every match not in a terminal state.
	ListActive(ctx context.Context) ([]*models.Match, error)
	// FindActiveByPlayer returns the player's current non-terminal match, or
	// ErrMatchNotFound.
	FindActiveByPlayer(ctx context.Context, playerID int) (*models.Match, error)
	// FindByProposalCandidate returns the active match whose pending
	// replacement proposal targets the given candidate.
	FindByProposalCandidate(ctx context.Context, candidateID int) (*models.Match, error)
	// FindOpen returns an open match on a court at a scheduled time, if any.
	FindOpen(ctx context.Context, courtID int, scheduledAt time.Time) (*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, court_id, player_ids, confirmed_ids, scheduled_at, status, average_level, category, reason, notifications, proposal, created_at`

func (r *postgresMatchRepository) Create(ctx context.Context, match *models.Match) error {
	notifications, err := marshalJSONB(match.Notifications)
	if err != nil {
		return err
	}
	proposal, err := marshalJSONB(match.Proposal)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO matches (court_id, player_ids, confirmed_ids, scheduled_at, status, average_level, category, reason, notifications, proposal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return r.db.QueryRowContext(ctx, query,
		match.CourtID,
		pq.Array(match.PlayerIDs),
		pq.Array(match.ConfirmedIDs),
		match.ScheduledAt,
		match.Status,
		match.AverageLevel,
		match.Category,
		reasonValue(match.Reason),
		notifications,
		proposal,
	).Scan(&match.ID, &match.CreatedAt)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) Update(ctx context.Context, match *models.Match) error {
	notifications, err := marshalJSONB(match.Notifications)
	if err != nil {
		return err
	}
	proposal, err := marshalJSONB(match.Proposal)
	if err != nil {
		return err
	}

	query := `
		UPDATE matches
		SET court_id = $1, player_ids = $2, confirmed_ids = $3, scheduled_at = $4,
		    status = $5, average_level = $6, category = $7, reason = $8,
		    notifications = $9, proposal = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		match.CourtID,
		pq.Array(match.PlayerIDs),
		pq.Array(match.ConfirmedIDs),
		match.ScheduledAt,
		match.Status,
		match.AverageLevel,
		match.Category,
		reasonValue(match.Reason),
		notifications,
		proposal,
		match.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListByStatus(ctx context.Context, statuses ...models.MatchStatus) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE status = ANY($1) ORDER BY id`

	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresMatchRepository) ListActive(ctx context.Context) ([]*models.Match, error) {
	return r.ListByStatus(ctx,
		models.MatchStatusOpen,
		models.MatchStatusFull,
		models.MatchStatusNotified,
		models.MatchStatusConfirmed,
	)
}

func (r *postgresMatchRepository) FindActiveByPlayer(ctx context.Context, playerID int) (*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status NOT IN ('completed', 'canceled') AND $1 = ANY(player_ids)
		ORDER BY id
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, playerID))
}

func (r *postgresMatchRepository) FindByProposalCandidate(ctx context.Context, candidateID int) (*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status NOT IN ('completed', 'canceled')
		  AND proposal IS NOT NULL
		  AND (proposal->>'candidate_id')::int = $1
		ORDER BY id
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, candidateID))
}

func (r *postgresMatchRepository) FindOpen(ctx context.Context, courtID int, scheduledAt time.Time) (*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE status = 'open' AND court_id = $1 AND scheduled_at = $2
		ORDER BY id
		LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, courtID, scheduledAt))
}

func (r *postgresMatchRepository) scanOne(row *sql.Row) (*models.Match, error) {
	m, err := scanMatch(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) scanAll(rows *sql.Rows) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanMatch(scan func(dest ...interface{}) error) (*models.Match, error) {
	var m models.Match
	var playerIDs, confirmedIDs pq.Int64Array
	var reason sql.NullString
	var notifications, proposal []byte

	err := scan(
		&m.ID,
		&m.CourtID,
		&playerIDs,
		&confirmedIDs,
		&m.ScheduledAt,
		&m.Status,
		&m.AverageLevel,
		&m.Category,
		&reason,
		&notifications,
		&proposal,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.PlayerIDs = toInts(playerIDs)
	m.ConfirmedIDs = toInts(confirmedIDs)
	if reason.Valid {
		r := models.CancellationReason(reason.String)
		m.Reason = &r
	}
	if err := unmarshalJSONB(notifications, &m.Notifications); err != nil {
		return nil, err
	}
	if err := unmarshalJSONB(proposal, &m.Proposal); err != nil {
		return nil, err
	}
	return &m, nil
}

func toInts(raw pq.Int64Array) []int {
	ids := make([]int, 0, len(raw))
	for _, v := range raw {
		ids = append(ids, int(v))
	}
	return ids
}

func reasonValue(r *models.CancellationReason) interface{} {
	if r == nil {
		return nil
	}
	return string(*r)
}
