// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — no ORM, no base classes.
// The `json:"..."` struct tags control the wire format; the API speaks
// snake_case JSON.
package model

import "time"

// User represents a registered account.
//
// PasswordHash holds the bcrypt hash of the user's password — never the
// plaintext. The `json:"-"` tag guarantees it can never leak into an API
// response, no matter which handler serializes the struct.
//
// IsActive is stored (default true) but deliberately not enforced during
// login or token resolution. Flipping it has no effect on authentication
// until that check is added intentionally.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
