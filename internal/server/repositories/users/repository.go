// Package users declares the user repository and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/habitsync/internal/server/models"
)

type Repository interface {
	// Create stores user and fills its ID. A taken username yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
