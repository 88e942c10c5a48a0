package completion

import (
	"context"
	"errors"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/metadata"
)

// StatusRecheck re-queries the status of entries that are not finished or
// whose airing flag disagrees with their status. A changed status is only
// committed when a second, debounced query confirms it.
type StatusRecheck struct {
	*Config
	// Chain defaults to kitsu, then jikan.
	Chain []string
}

func NewStatusRecheck(cfg *Config) *StatusRecheck {
	return &StatusRecheck{Config: cfg, Chain: []string{metadata.Kitsu, metadata.Jikan}}
}

func (s *StatusRecheck) Name() string { return "status" }

// NeedsRecheck reports whether the entry's status may be stale.
func NeedsRecheck(e catalog.Entry) bool {
	return catalog.NormalizeStatus(e.Status) != catalog.StatusFinished || !catalog.Consistent(e.Status, e.Airing)
}

func (s *StatusRecheck) Fill(ctx context.Context, c catalog.Catalog) (int, error) {
	chain := s.chain(s.Chain...)
	log := s.log()
	updated := 0
	first := true

	for i := range c {
		if !NeedsRecheck(c[i]) {
			continue
		}
		if !first {
			if err := s.sleep(ctx, s.EntryDelay); err != nil {
				return updated, err
			}
		}
		first = false

		before := c[i].Clone()
		s.recheck(ctx, &c[i], chain)
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if !c[i].Equal(before) {
			updated++
			log.Infof("%q: status %s, airing %t", c[i].Name, c[i].Status, c[i].Airing)
		}
	}
	return updated, nil
}

// recheck asks the first provider in chain that answers.
func (s *StatusRecheck) recheck(ctx context.Context, e *catalog.Entry, chain []metadata.Provider) {
	log := s.log()
	q := metadata.Query{Name: e.Name}
	for _, p := range chain {
		rec, err := metadata.Lookup(ctx, p, q)
		if err != nil {
			if !errors.Is(err, metadata.ErrNoMatch) {
				log.Warnf("%s status lookup for %q failed: %v", p.Name(), e.Name, err)
			}
			continue
		}
		if !rec.Has(metadata.FieldStatus) {
			continue
		}

		current := catalog.NormalizeStatus(e.Status)
		observed := catalog.NormalizeStatus(rec.Status)
		if observed == current {
			// Status holds; only repair the airing flag if it disagrees.
			e.Airing = catalog.ValidateAiring(e.Status, e.Airing)
			return
		}

		if err := s.sleep(ctx, s.Debounce); err != nil {
			return
		}
		confirm, err := metadata.Lookup(ctx, p, q)
		if err != nil || catalog.NormalizeStatus(confirm.Status) != observed {
			log.Infof("%q: %s reported %s then %q; ignoring", e.Name, p.Name(), observed, confirm.Status)
			return
		}

		log.Infof("%q: status %s -> %s (%s)", e.Name, e.Status, observed, p.Name())
		airing := e.Airing
		if confirm.Airing != nil {
			airing = *confirm.Airing
		}
		e.Status = observed
		e.Airing = catalog.ValidateAiring(observed, airing)
		return
	}
	// No provider knew the entry; fix the flag from the stored status.
	e.Airing = catalog.ValidateAiring(e.Status, e.Airing)
}
