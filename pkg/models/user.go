package models

import "time"

// User is an account identity. Email is unique system-wide. PasswordHash is
// a bcrypt digest and never leaves the persistence boundary in API responses.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name" validate:"required,max=20"`
	LastName     string    `json:"last_name"  validate:"max=20"`
	Email        string    `json:"email"      validate:"required,email,max=254"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
