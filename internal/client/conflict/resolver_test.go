package conflict

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Minute)
)

func record(text string, updated time.Time, token string) *models.Record {
	return &models.Record{
		ID:           "r",
		Text:         text,
		RepeatCount:  1,
		TargetCount:  10,
		DateCreated:  t1.Add(-time.Hour),
		UpdatedAt:    updated,
		VersionToken: []byte(token),
	}
}

func TestResolve_RemoteNewerWins(t *testing.T) {
	local := record("local", t1, "tok-1")
	remote := record("remote", t2, "tok-2")
	remote.RepeatCount = 5
	practiced := t2
	remote.LastPracticedAt = &practiced
	remote.AudioFileName = "staging/r"

	m := Resolve(local, remote)

	require.True(t, m.RemoteWins)
	assert.True(t, m.Changed)
	assert.False(t, m.Created)
	assert.Equal(t, "remote", m.Record.Text)
	assert.Equal(t, int64(5), m.Record.RepeatCount)
	assert.Equal(t, t2, *m.Record.LastPracticedAt)
	assert.Equal(t, "staging/r", m.Record.AudioFileName)
	assert.Equal(t, t2, m.Record.UpdatedAt)
	assert.Equal(t, []byte("tok-2"), m.Record.VersionToken)

	assert.Equal(t, "local", local.Text, "inputs are not modified")
}

func TestResolve_LocalNewerKeepsContentButTakesToken(t *testing.T) {
	local := record("local", t2, "tok-1")
	remote := record("remote", t1, "tok-2")

	m := Resolve(local, remote)

	assert.False(t, m.RemoteWins)
	assert.False(t, m.Changed)
	assert.Equal(t, "local", m.Record.Text)
	assert.Equal(t, t2, m.Record.UpdatedAt)
	assert.Equal(t, []byte("tok-2"), m.Record.VersionToken)
}

func TestResolve_EqualTimestampsKeepLocal(t *testing.T) {
	m := Resolve(record("local", t1, "a"), record("remote", t1, "b"))

	assert.False(t, m.RemoteWins)
	assert.Equal(t, "local", m.Record.Text)
	assert.Equal(t, []byte("b"), m.Record.VersionToken)
}

func TestResolve_LocalWithoutUpdatedAtLoses(t *testing.T) {
	m := Resolve(record("local", time.Time{}, ""), record("remote", t1, "b"))

	assert.True(t, m.RemoteWins)
	assert.Equal(t, "remote", m.Record.Text)
}

func TestResolve_ArchivedIsUnconditional(t *testing.T) {
	local := record("local", t2, "a")
	remote := record("remote", t1, "b")
	remote.IsArchived = true

	m := Resolve(local, remote)

	assert.False(t, m.RemoteWins)
	assert.True(t, m.Record.IsArchived, "older remote archive still applies")
	assert.True(t, m.Changed)
	assert.Equal(t, "local", m.Record.Text)

	local.IsArchived = true
	remote.IsArchived = false
	m = Resolve(local, remote)
	assert.False(t, m.Record.IsArchived, "restoration applies the same way")
}

func TestResolve_MissingLocalCreates(t *testing.T) {
	remote := record("remote", t1, "b")

	m := Resolve(nil, remote)

	assert.True(t, m.Created)
	assert.Equal(t, remote, m.Record)
	assert.NotSame(t, remote, m.Record)
}

func TestResolve_LastPracticedCleared(t *testing.T) {
	practiced := t1
	local := record("same", t1, "a")
	local.LastPracticedAt = &practiced
	remote := record("same", t2, "b")

	m := Resolve(local, remote)

	assert.Nil(t, m.Record.LastPracticedAt)
	assert.True(t, m.Changed)
}
