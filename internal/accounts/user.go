package accounts

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrProfileNotFound = errors.New("profile not found")
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds optional body stats used for calorie estimations.
// Nil fields mean the user never provided the value.
type Profile struct {
	UserID int      `json:"user_id"`
	Age    *int     `json:"age"`
	Weight *float64 `json:"weight"`
}
