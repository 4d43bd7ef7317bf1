package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
	"github.com/google/uuid"
)

// Users is the in-memory users.Repository. Users are keyed by username.
type Users struct {
	s *Store
}

func NewUsers(s *Store) *Users {
	return &Users{s: s}
}

func (r *Users) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[user.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	r.s.users[user.UserName] = *user
	return user, nil
}

func (r *Users) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[login]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}
