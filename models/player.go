package models

import "time"

// Player is a club member eligible for matchmaking. Level is a continuous
// rating; Category is the integer band the club publishes (kept independent
// of Level, it is only recomputed by administrative imports).
type Player struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	Level     float64   `json:"level" db:"level"`
	Category  int       `json:"category" db:"category"`
	Available bool      `json:"available" db:"available"`
	AvatarKey *string   `json:"-" db:"avatar_key"`
	AvatarURL *string   `json:"avatar_url,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Admin is a back-office account for the management API.
type Admin struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const RoleAdmin = "admin"
