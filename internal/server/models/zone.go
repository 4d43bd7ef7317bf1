package models

import "time"

// Zone is a named record partition of one user. Seq is the sequence number
// of the last change written into the zone; Generation changes when the
// zone is recreated so cursors issued for an older incarnation expire.
type Zone struct {
	UserID     string
	Name       string
	Generation string
	Seq        int64
	Subscribed bool
	CreatedAt  time.Time
}
