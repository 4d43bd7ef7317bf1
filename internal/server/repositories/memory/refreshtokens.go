package memory

import (
	"context"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
	"github.com/google/uuid"
)

type RefreshTokens struct {
	s *Store
}

func NewRefreshTokens(s *Store) *RefreshTokens {
	return &RefreshTokens{s: s}
}

func (r *RefreshTokens) Create(_ context.Context, userID string, token string, validity time.Duration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	r.s.refreshTokens[token] = models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     token,
		Expires:   now.Add(validity),
		CreatedAt: now,
	}
	return nil
}

func (r *RefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.refreshTokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *RefreshTokens) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.refreshTokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.s.refreshTokens, token)
	return nil
}

func (r *RefreshTokens) PurgeExpired(_ context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, t := range r.s.refreshTokens {
		if t.UserID == userID && t.Expires.Before(now) {
			delete(r.s.refreshTokens, k)
			n++
		}
	}
	return n, nil
}
