package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Clone_IsDeep(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Record{ID: "a", LastPracticedAt: &at, VersionToken: []byte{1}}

	c := r.Clone()
	*c.LastPracticedAt = at.Add(time.Hour)
	c.VersionToken[0] = 2

	assert.Equal(t, at, *r.LastPracticedAt)
	assert.Equal(t, []byte{1}, r.VersionToken)
	assert.Nil(t, (*Record)(nil).Clone())
}

func TestRecord_Touch_Monotonic(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := &Record{}

	r.Touch(now)
	assert.Equal(t, now, r.UpdatedAt)

	r.Touch(now.Add(-time.Minute))
	assert.True(t, r.UpdatedAt.After(now), "clock going backwards must not decrease UpdatedAt")

	later := now.Add(time.Hour)
	r.Touch(later)
	assert.Equal(t, later, r.UpdatedAt)
}

func TestPendingChange_String(t *testing.T) {
	assert.Equal(t, "save(x)", Save("x").String())
	assert.Equal(t, "delete(y)", Delete("y").String())
	assert.True(t, (&Record{}).IsActive())
	assert.False(t, (&Record{IsArchived: true}).IsActive())
}
