// Package reconcile diffs a provider scan against the stored catalog.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/scanner"
)

// WipeThreshold is the catalog size above which an empty scan is refused.
const WipeThreshold = 10

// ErrAbortingCatalogWipe is returned when a scan finds nothing but the stored
// catalog is large. Nothing must be written in that case.
var ErrAbortingCatalogWipe = errors.New("scan returned no entries; refusing to wipe catalog")

// RemovalPolicy decides what happens to entries missing from a scan.
type RemovalPolicy string

const (
	RemoveMissing RemovalPolicy = "delete"
	KeepMissing   RemovalPolicy = "keep"
)

// ParseRemovalPolicy accepts "delete" (default when empty) or "keep".
func ParseRemovalPolicy(s string) (RemovalPolicy, error) {
	switch RemovalPolicy(s) {
	case "", RemoveMissing:
		return RemoveMissing, nil
	case KeepMissing:
		return KeepMissing, nil
	}
	return "", fmt.Errorf("unknown removal policy %q", s)
}

// EnrichFunc fills metadata for freshly created entries.
type EnrichFunc func(ctx context.Context, entries []catalog.Entry) []catalog.Entry

// Options tunes a reconciliation.
type Options struct {
	Removal RemovalPolicy
	Enrich  EnrichFunc    // optional
	Log     logger.Logger // optional
}

// Result is the outcome of one reconciliation.
type Result struct {
	Catalog catalog.Catalog
	Stored  catalog.Catalog

	Added     []catalog.Entry
	Removed   []catalog.Entry
	Relocated []catalog.Entry
	// Deferred entries were missing from the scan but have a location on a
	// provider that failed, so they were kept.
	Deferred []catalog.Entry
}

// Changed reports whether the reconciled catalog differs from the stored one.
func (r *Result) Changed() bool { return !r.Catalog.Equal(r.Stored) }

// Reconcile merges snap into stored and returns the new catalog. stored is not modified.
func Reconcile(ctx context.Context, snap scanner.Snapshot, stored catalog.Catalog, opts Options) (*Result, error) {
	log := logger.OrNop(opts.Log)

	if len(snap.Records) == 0 && len(stored) > WipeThreshold {
		log.Errorf("Scan returned 0 entries, but the catalog has %d. Aborting to prevent data loss.", len(stored))
		return nil, ErrAbortingCatalogWipe
	}

	res := &Result{Stored: stored.Clone()}
	scanned := snap.ByKey()
	known := make(map[string]struct{}, len(stored))

	out := make(catalog.Catalog, 0, len(stored)+len(snap.Records))
	for _, e := range stored {
		key := e.Key()
		known[key] = struct{}{}

		rec, ok := scanned[key]
		if ok {
			merged := e.Clone()
			merged.Locations = MergeLocations(e.Locations, rec.Locations, snap)
			if !slices.Equal(merged.Locations, e.Locations) {
				res.Relocated = append(res.Relocated, merged)
			}
			out = append(out, merged)
			continue
		}

		kept := e.Clone()
		kept.Locations = pruneLocations(e.Locations, snap)
		switch {
		case opts.Removal == KeepMissing:
			out = append(out, kept)
		case onFailedProvider(e, snap):
			log.Warnf("%q is missing but one of its providers failed this scan; keeping it", e.Name)
			res.Deferred = append(res.Deferred, kept)
			out = append(out, kept)
		default:
			log.Infof("Removing %q (id %d): no longer listed by any provider", e.Name, e.ID)
			res.Removed = append(res.Removed, e.Clone())
		}
	}

	alloc := NewAllocator(stored)
	var fresh []catalog.Entry
	for _, rec := range snap.Records {
		if _, ok := known[rec.Key]; ok {
			continue
		}
		known[rec.Key] = struct{}{}
		e := catalog.NewEntry(alloc.Next(), rec.Name, rec.Locations)
		if rec.Letter != "" {
			e.Letter = rec.Letter
		}
		log.Infof("New entry %q gets id %d", e.Name, e.ID)
		fresh = append(fresh, e)
	}

	if len(fresh) > 0 && opts.Enrich != nil {
		enriched := opts.Enrich(ctx, fresh)
		// Enrichment may fill metadata only; identity and locations stay ours.
		for i := range fresh {
			if i < len(enriched) && enriched[i].ID == fresh[i].ID {
				e := enriched[i].Clone()
				e.Name, e.Letter, e.Locations = fresh[i].Name, fresh[i].Letter, fresh[i].Locations
				fresh[i] = e
			}
		}
	}
	res.Added = fresh
	out = append(out, fresh...)

	res.Catalog = out.Sorted()
	return res, nil
}

// MergeLocations keeps stored locations on still-configured providers and adds
// scanned pairs for providers the entry has no location on yet. No pair is
// ever duplicated.
func MergeLocations(stored, scanned []catalog.Location, snap scanner.Snapshot) []catalog.Location {
	merged := pruneLocations(stored, snap)
	for _, loc := range scanned {
		if slices.Contains(merged, loc) {
			continue
		}
		if slices.ContainsFunc(merged, func(l catalog.Location) bool { return l.Provider == loc.Provider }) {
			continue
		}
		merged = append(merged, loc)
	}
	return merged
}

func pruneLocations(locs []catalog.Location, snap scanner.Snapshot) []catalog.Location {
	out := make([]catalog.Location, 0, len(locs))
	for _, l := range locs {
		if snap.ProviderValid(l.Provider) && !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}

func onFailedProvider(e catalog.Entry, snap scanner.Snapshot) bool {
	for _, l := range e.Locations {
		if snap.ProviderFailed(l.Provider) {
			return true
		}
	}
	return false
}
