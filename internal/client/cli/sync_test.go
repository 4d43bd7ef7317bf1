package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/client/syncengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSync_RequiresOnlineLogin(t *testing.T) {
	ta := newTestApp(t)
	ta.accountID = "acc-1"

	require.ErrorIs(t, ta.Sync(context.Background(), nil), errNotLoggedIn)
	assert.Zero(t, ta.engine.fullSyncs)
}

func TestSync_RequestsFullSyncAndReports(t *testing.T) {
	ta := newTestApp(t)
	ta.loginAs("acc-1")
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ta.engine.status = syncengine.Status{LastSyncDate: &last}

	require.NoError(t, ta.Sync(context.Background(), nil))

	assert.Equal(t, 1, ta.engine.fullSyncs)
	assert.Contains(t, ta.buf.String(), "Last sync: "+last.Local().Format(time.DateTime))
}

func TestStatus_ShowsPendingAndError(t *testing.T) {
	ta := newTestApp(t)
	ta.engine.status = syncengine.Status{IsBusy: true, LastSyncError: errors.New("quota")}
	ta.engine.pending = []models.PendingChange{models.Save("a"), models.Delete("b")}

	require.NoError(t, ta.Status(context.Background(), nil))
	out := ta.buf.String()
	assert.Contains(t, out, "Busy: true")
	assert.Contains(t, out, "Pending changes: 2")
	assert.Contains(t, out, "Last sync: never")
	assert.Contains(t, out, "Last error: quota")
}
