package model

import "time"

// User holds login credentials for a principal. The username is the
// principal ID used everywhere else (item custody fields, role grants,
// ledger accounts); users carry no authorization data themselves.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
