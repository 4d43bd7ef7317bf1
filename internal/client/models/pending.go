package models

import "fmt"

// ChangeKind is the operation of a pending change.
type ChangeKind string

const (
	ChangeSave   ChangeKind = "save"
	ChangeDelete ChangeKind = "delete"
)

// PendingChange is a queued save or delete awaiting transmission.
type PendingChange struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id"`
}

func Save(id string) PendingChange   { return PendingChange{Kind: ChangeSave, ID: id} }
func Delete(id string) PendingChange { return PendingChange{Kind: ChangeDelete, ID: id} }

func (p PendingChange) String() string {
	return fmt.Sprintf("%s(%s)", p.Kind, p.ID)
}
