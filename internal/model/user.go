package model

import "time"

// User is an operator of the management API, authenticated by API key.
type User struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	APIKey    string    `db:"api_key"`
	Status    string    `db:"status"` // active | suspended
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
