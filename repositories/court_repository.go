package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/padeliga/matchday/models"
)

var ErrCourtNotFound = errors.New("court not found")

type CourtRepository interface {
	GetByID(ctx context.Context, id int) (*models.Court, error)
	ListActive(ctx context.Context) ([]*models.Court, error)
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

func (r *postgresCourtRepository) GetByID(ctx context.Context, id int) (*models.Court, error) {
	query := `SELECT id, name, type, active, days, slots, capacity FROM courts WHERE id = $1`

	var c models.Court
	var days pq.Int64Array
	var slots pq.StringArray
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Type, &c.Active, &days, &slots, &c.Capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourtNotFound
		}
		return nil, err
	}
	c.Days = toWeekdays(days)
	c.Slots = slots
	return &c, nil
}

func (r *postgresCourtRepository) ListActive(ctx context.Context) ([]*models.Court, error) {
	query := `SELECT id, name, type, active, days, slots, capacity FROM courts WHERE active = TRUE ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		var c models.Court
		var days pq.Int64Array
		var slots pq.StringArray
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Active, &days, &slots, &c.Capacity); err != nil {
			return nil, err
		}
		c.Days = toWeekdays(days)
		c.Slots = slots
		courts = append(courts, &c)
	}
	return courts, rows.Err()
}

func toWeekdays(raw pq.Int64Array) []time.Weekday {
	days := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		days = append(days, time.Weekday(d))
	}
	return days
}
