package reconcile

import "github.com/otakuflix/adata/pkg/catalog"

// Allocator hands out entry ids for one run. Every id it returns is greater
// than any id in the catalog it was built from and is never returned twice.
type Allocator struct {
	next   int
	issued map[int]struct{}
	taken  map[int]struct{}
}

// NewAllocator seeds an allocator from the stored catalog.
func NewAllocator(c catalog.Catalog) *Allocator {
	a := &Allocator{
		next:   c.MaxID() + 1,
		issued: map[int]struct{}{},
		taken:  make(map[int]struct{}, len(c)),
	}
	for _, e := range c {
		a.taken[e.ID] = struct{}{}
	}
	if a.next < 1 {
		a.next = 1
	}
	return a
}

// Next returns the next free id.
func (a *Allocator) Next() int {
	for {
		id := a.next
		a.next++
		if _, ok := a.issued[id]; ok {
			continue
		}
		if _, ok := a.taken[id]; ok {
			continue
		}
		a.issued[id] = struct{}{}
		return id
	}
}
