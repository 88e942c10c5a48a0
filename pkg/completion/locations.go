package completion

import (
	"context"
	"errors"
	"slices"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/hosting"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/scanner"
)

// ErrNoListings is returned when every hosting provider failed.
var ErrNoListings = errors.New("no hosting provider could be listed")

// LocationRefresh replaces each listed entry's locations with the ones seen
// now. Locations on providers that failed this scan are kept, and entries
// missing from the scan are left alone.
type LocationRefresh struct {
	Listers []hosting.Lister
	Log     logger.Logger
}

func (l *LocationRefresh) Name() string { return "servers" }

func (l *LocationRefresh) Fill(ctx context.Context, c catalog.Catalog) (int, error) {
	log := logger.OrNop(l.Log)
	snap := scanner.Scan(ctx, l.Listers, log)
	if snap.AllFailed() {
		return 0, ErrNoListings
	}
	scanned := snap.ByKey()

	updated := 0
	for i := range c {
		rec, ok := scanned[c[i].Key()]
		if !ok {
			continue
		}
		locs := slices.Clone(rec.Locations)
		for _, old := range c[i].Locations {
			if snap.ProviderFailed(old.Provider) && !slices.Contains(locs, old) {
				locs = append(locs, old)
			}
		}
		if !slices.Equal(locs, c[i].Locations) {
			log.Infof("Updated: %s - servers: %s", c[i].Name, providerNames(locs))
			c[i].Locations = locs
			updated++
		}
	}
	return updated, nil
}

func providerNames(locs []catalog.Location) []string {
	names := make([]string, 0, len(locs))
	for _, l := range locs {
		names = append(names, l.Provider)
	}
	return names
}
