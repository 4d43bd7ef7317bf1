// Package conflict merges a remote version of a record into the local one.
//
// Content fields follow last-write-wins on UpdatedAt. IsArchived always
// takes the remote value, whichever side won on content, and the remote
// version token always replaces the local one so the next upload is
// checked against the version just merged.
package conflict

import (
	"bytes"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
)

// Merge is the outcome of Resolve.
type Merge struct {
	Record *models.Record

	// Created is set when there was no local record.
	Created bool
	// RemoteWins is set when content fields were taken from remote.
	RemoteWins bool
	// Changed is set when anything but the version token changed.
	Changed bool
}

// Resolve merges remote into a copy of local. Neither argument is
// modified.
func Resolve(local, remote *models.Record) Merge {
	if local == nil {
		return Merge{Record: remote.Clone(), Created: true, RemoteWins: true, Changed: true}
	}

	merged := local.Clone()
	m := Merge{Record: merged}

	if local.UpdatedAt.IsZero() || remote.UpdatedAt.After(local.UpdatedAt) {
		m.RemoteWins = true
		merged.Text = remote.Text
		merged.RepeatCount = remote.RepeatCount
		merged.TargetCount = remote.TargetCount
		merged.LastPracticedAt = remote.Clone().LastPracticedAt
		merged.AudioFileName = remote.AudioFileName
		merged.UpdatedAt = remote.UpdatedAt
	}

	merged.IsArchived = remote.IsArchived
	merged.VersionToken = bytes.Clone(remote.VersionToken)

	m.Changed = !sameContent(local, merged)
	return m
}

func sameContent(a, b *models.Record) bool {
	if a.Text != b.Text ||
		a.RepeatCount != b.RepeatCount ||
		a.TargetCount != b.TargetCount ||
		a.IsArchived != b.IsArchived ||
		a.AudioFileName != b.AudioFileName ||
		!a.UpdatedAt.Equal(b.UpdatedAt) {
		return false
	}
	switch {
	case a.LastPracticedAt == nil && b.LastPracticedAt == nil:
		return true
	case a.LastPracticedAt == nil || b.LastPracticedAt == nil:
		return false
	default:
		return a.LastPracticedAt.Equal(*b.LastPracticedAt)
	}
}
