package storage

import (
	"sort"
	"time"

	"github.com/otakuflix/adata/pkg/catalog"
)

// Diff lists per-entry changes between two catalogs, ordered by id.
func Diff(before, after catalog.Catalog) []Change {
	now := time.Now().UTC()
	old := before.ByID()
	cur := after.ByID()

	var changes []Change
	for id, e := range cur {
		prev, existed := old[id]
		switch {
		case !existed:
			changes = append(changes, Change{OccurredAt: now, ID: id, Name: e.Name, ChangeType: ChangeAdded})
		case !prev.Equal(e):
			changes = append(changes, Change{OccurredAt: now, ID: id, Name: e.Name, ChangeType: ChangeUpdated})
		}
	}
	for id, e := range old {
		if _, ok := cur[id]; !ok {
			changes = append(changes, Change{OccurredAt: now, ID: id, Name: e.Name, ChangeType: ChangeRemoved})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes
}
