package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/padeliga/matchday/models"
)

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrPlayerPhoneConflict = errors.New("player phone conflict")
)

type PlayerRepository interface {
	Create(ctx context.Context, player *models.Player) error
	GetByID(ctx context.Context, id int) (*models.Player, error)
	GetByPhone(ctx context.Context, phone string) (*models.Player, error)
	List(ctx context.Context) ([]*models.Player, error)
	ListAvailable(ctx context.Context) ([]*models.Player, error)
	Update(ctx context.Context, player *models.Player) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

const playerColumns = `id, name, phone, level, category, available, avatar_key, created_at`

func (r *postgresPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (name, phone, level, category, available, avatar_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		player.Name,
		player.Phone,
		player.Level,
		player.Category,
		player.Available,
		player.AvatarKey,
	).Scan(&player.ID, &player.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "players_phone_key" {
				return ErrPlayerPhoneConflict
			}
		}
		return err
	}
	return nil
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPlayerRepository) GetByPhone(ctx context.Context, phone string) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE phone = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, phone))
}

func (r *postgresPlayerRepository) List(ctx context.Context) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players ORDER BY id`
	return r.list(ctx, query)
}

func (r *postgresPlayerRepository) ListAvailable(ctx context.Context) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE available = TRUE ORDER BY id`
	return r.list(ctx, query)
}

func (r *postgresPlayerRepository) Update(ctx context.Context, player *models.Player) error {
	query := `
		UPDATE players
		SET name = $1, phone = $2, level = $3, category = $4, available = $5, avatar_key = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		player.Name,
		player.Phone,
		player.Level,
		player.Category,
		player.Available,
		player.AvatarKey,
		player.ID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) list(ctx context.Context, query string) ([]*models.Player, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Level, &p.Category, &p.Available, &p.AvatarKey, &p.CreatedAt); err != nil {
			return nil, err
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

func (r *postgresPlayerRepository) scanOne(row *sql.Row) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Level, &p.Category, &p.Available, &p.AvatarKey, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}
