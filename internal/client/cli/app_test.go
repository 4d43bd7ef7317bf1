package cli

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/habitsync/internal/client/migrations"
	"github.com/dmitrijs2005/habitsync/internal/client/repositories/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoggedIn(t *testing.T) {
	app := &App{}
	assert.False(t, app.isLoggedIn())

	app.accountID = "acc-1"
	assert.True(t, app.isLoggedIn())
}

func TestSetMode_ChangesAndReportsOnce(t *testing.T) {
	ta := newTestApp(t)

	ta.setMode(ModeOnline)
	assert.Equal(t, ModeOnline, ta.Mode)
	assert.Contains(t, ta.buf.String(), "online")

	ta.buf.Reset()
	ta.setMode(ModeOnline)
	assert.Empty(t, ta.buf.String())

	ta.setMode(ModeOffline)
	assert.Equal(t, ModeOffline, ta.Mode)
	assert.Contains(t, ta.buf.String(), "offline")
}

func TestLoadDeviceID_IsStable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(context.Background(), db))

	repo := metadata.NewSQLiteRepository(db)
	first, err := loadDeviceID(context.Background(), repo)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := loadDeviceID(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCheckOnline_ActivatesAuthorizedSession(t *testing.T) {
	ta := newTestApp(t)
	ta.loginAs("acc-1")
	t.Cleanup(ta.stopWatching)

	ta.checkOnline(context.Background())

	assert.Equal(t, ModeOnline, ta.mode())
	assert.True(t, ta.engine.isActive())
	assert.Equal(t, 1, ta.sub.calls)

	// a second successful ping keeps the existing stream
	ta.checkOnline(context.Background())
	assert.Equal(t, 1, ta.engine.activations)
	assert.Equal(t, 1, ta.sub.calls)
}

func TestCheckOnline_OfflineSessionStaysLocal(t *testing.T) {
	ta := newTestApp(t)
	ta.accountID = "acc-1"

	ta.checkOnline(context.Background())

	assert.Equal(t, ModeOnline, ta.mode())
	assert.False(t, ta.engine.isActive())
	assert.Zero(t, ta.sub.calls)
}

func TestCheckOnline_DeactivatesWhenServerGoesAway(t *testing.T) {
	ta := newTestApp(t)
	ta.loginAs("acc-1")
	ta.checkOnline(context.Background())
	require.True(t, ta.engine.isActive())

	ta.auth.pingErr = errors.New("connection refused")
	ta.checkOnline(context.Background())

	assert.Equal(t, ModeOffline, ta.mode())
	assert.False(t, ta.engine.isActive())
	ta.mu.Lock()
	assert.Nil(t, ta.unwatch)
	ta.mu.Unlock()
}

func TestCheckOnline_SubscribeFailureIsRetried(t *testing.T) {
	ta := newTestApp(t)
	ta.loginAs("acc-1")
	ta.sub.err = errors.New("stream refused")

	ta.checkOnline(context.Background())
	assert.True(t, ta.engine.isActive())
	assert.Equal(t, 1, ta.sub.calls)

	ta.sub.err = nil
	t.Cleanup(ta.stopWatching)
	ta.checkOnline(context.Background())
	assert.Equal(t, 2, ta.sub.calls)
}
