// Package refreshtokens stores the refresh tokens handed out at login.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

type Repository interface {
	// Create stores a new refresh token for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Find returns common.ErrorNotFound when the token is unknown.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete revokes token. It returns common.ErrorNotFound when the token
	// was already gone, so a token can be redeemed only once.
	Delete(ctx context.Context, token string) error

	// PurgeExpired removes the tokens of userID that expired before now and
	// reports how many were removed.
	PurgeExpired(ctx context.Context, userID string, now time.Time) (int64, error)
}
