// Package models defines the client side record types and the shapes
// exchanged with the remote record store.
package models

import (
	"bytes"
	"time"
)

// Record is a habit affirmation: the unit kept in sync across devices.
type Record struct {
	ID              string
	Text            string
	RepeatCount     int64
	TargetCount     int64
	DateCreated     time.Time
	UpdatedAt       time.Time // zero means never stamped
	LastPracticedAt *time.Time
	IsArchived      bool
	AudioFileName   string // path inside the asset file system, empty if none
	VersionToken    []byte // issued by the remote store, never interpreted
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastPracticedAt != nil {
		t := *r.LastPracticedAt
		c.LastPracticedAt = &t
	}
	if r.VersionToken != nil {
		c.VersionToken = bytes.Clone(r.VersionToken)
	}
	return &c
}

// IsActive reports whether r shows up in active listings.
func (r *Record) IsActive() bool {
	return r != nil && !r.IsArchived
}

// Touch stamps UpdatedAt with now, keeping it non-decreasing even when the
// wall clock steps backwards.
func (r *Record) Touch(now time.Time) {
	now = now.UTC()
	if !now.After(r.UpdatedAt) {
		now = r.UpdatedAt.Add(time.Microsecond)
	}
	r.UpdatedAt = now
}
