package syncstate

import (
	"encoding/json"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
)

// PendingSet is an insertion ordered set of pending changes. A delete
// is terminal for its id: it replaces a queued save, and later saves of
// the same id are ignored.
type PendingSet struct {
	items []models.PendingChange
}

func (p *PendingSet) index(c models.PendingChange) int {
	for i, it := range p.items {
		if it == c {
			return i
		}
	}
	return -1
}

// Add inserts c and reports whether the set changed.
func (p *PendingSet) Add(c models.PendingChange) bool {
	if p.index(c) >= 0 {
		return false
	}
	switch c.Kind {
	case models.ChangeSave:
		if p.index(models.Delete(c.ID)) >= 0 {
			return false
		}
	case models.ChangeDelete:
		p.Remove(models.Save(c.ID))
	}
	p.items = append(p.items, c)
	return true
}

// Remove deletes c and reports whether it was present.
func (p *PendingSet) Remove(c models.PendingChange) bool {
	i := p.index(c)
	if i < 0 {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	return true
}

func (p *PendingSet) Contains(c models.PendingChange) bool {
	return p.index(c) >= 0
}

func (p *PendingSet) Len() int {
	return len(p.items)
}

// Items returns a copy of the queued changes in insertion order.
func (p *PendingSet) Items() []models.PendingChange {
	return append([]models.PendingChange(nil), p.items...)
}

func (p *PendingSet) Clear() {
	p.items = nil
}

func (p PendingSet) MarshalJSON() ([]byte, error) {
	items := p.items
	if items == nil {
		items = []models.PendingChange{}
	}
	return json.Marshal(items)
}

func (p *PendingSet) UnmarshalJSON(b []byte) error {
	var items []models.PendingChange
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	p.items = nil
	for _, it := range items {
		p.Add(it)
	}
	return nil
}
