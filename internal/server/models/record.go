package models

import "time"

// Record is the server copy of a client record. Fields holds the record's
// JSON encoded field map. Deleted records are kept as tombstones so that
// fetches can report them.
type Record struct {
	UserID        string
	Zone          string
	ID            string
	Type          string
	Fields        []byte
	AssetChecksum string
	VersionToken  string
	Seq           int64
	Deleted       bool
	UpdatedAt     time.Time
}
