package models

import "time"

// RefreshToken is a single-use token redeemable for a new token pair
// until Expires.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Expires   time.Time
	CreatedAt time.Time
}
