package reconcile

import (
	"context"
	"fmt"
	"testing"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/scanner"
	"github.com/stretchr/testify/require"
)

func loc(provider, id string) catalog.Location {
	return catalog.Location{Provider: provider, ID: id}
}

func record(name string, locs ...catalog.Location) scanner.Record {
	return scanner.Record{
		Key:       catalog.IdentityKey(name),
		Name:      name,
		Letter:    catalog.Letter(name),
		Locations: locs,
	}
}

func snapshot(providers []string, failed []string, recs ...scanner.Record) scanner.Snapshot {
	return scanner.Snapshot{Records: recs, Providers: providers, Failed: failed}
}

func TestReconcileAddsNewEntries(t *testing.T) {
	stored := catalog.Catalog{catalog.NewEntry(1, "Foo", []catalog.Location{loc("xfs", "f1")})}
	snap := snapshot([]string{"xfs", "mixdrop"}, nil,
		record("Bar", loc("xfs", "b1")),
		record("foo", loc("xfs", "f1"), loc("mixdrop", "m1")),
	)

	var enriched []string
	res, err := Reconcile(context.Background(), snap, stored, Options{
		Enrich: func(_ context.Context, entries []catalog.Entry) []catalog.Entry {
			out := make([]catalog.Entry, len(entries))
			for i, e := range entries {
				enriched = append(enriched, e.Name)
				e.Genre = "Action"
				e.Name = "renamed by enrichment"
				e.Locations = nil
				out[i] = e
			}
			return out
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Catalog, 2)
	foo := res.Catalog[0]
	require.Equal(t, 1, foo.ID)
	require.Equal(t, "Foo", foo.Name)
	require.Equal(t, []catalog.Location{loc("xfs", "f1"), loc("mixdrop", "m1")}, foo.Locations)

	bar := res.Catalog[1]
	require.Equal(t, 2, bar.ID)
	require.Equal(t, "Bar", bar.Name)
	require.Equal(t, "B", bar.Letter)
	require.Equal(t, "Action", bar.Genre)
	require.Equal(t, []catalog.Location{loc("xfs", "b1")}, bar.Locations)

	require.Equal(t, []string{"Bar"}, enriched)
	require.Len(t, res.Added, 1)
	require.Len(t, res.Relocated, 1)
	require.True(t, res.Changed())

	// stored is left untouched
	require.Equal(t, []catalog.Location{loc("xfs", "f1")}, stored[0].Locations)
}

func TestReconcileEmptyCatalogStartsAtOne(t *testing.T) {
	snap := snapshot([]string{"xfs"}, nil, record("Naruto", loc("xfs", "1")))
	res, err := Reconcile(context.Background(), snap, catalog.Catalog{}, Options{})
	require.NoError(t, err)
	require.Len(t, res.Catalog, 1)
	require.Equal(t, 1, res.Catalog[0].ID)
	require.Equal(t, catalog.NotAvailable, res.Catalog[0].Poster)
}

func TestReconcileIsIdempotent(t *testing.T) {
	snap := snapshot([]string{"xfs", "mixdrop"}, nil,
		record("A", loc("xfs", "1")),
		record("B", loc("mixdrop", "2")),
		record("C", loc("xfs", "3"), loc("mixdrop", "4")),
	)
	first, err := Reconcile(context.Background(), snap, catalog.Catalog{}, Options{})
	require.NoError(t, err)

	second, err := Reconcile(context.Background(), snap, first.Catalog, Options{})
	require.NoError(t, err)
	require.False(t, second.Changed())
	require.Empty(t, second.Added)
	require.Empty(t, second.Removed)
	require.True(t, first.Catalog.Equal(second.Catalog))
}

func TestReconcileIDsAreUniqueAndAboveMax(t *testing.T) {
	stored := catalog.Catalog{
		catalog.NewEntry(3, "Old", []catalog.Location{loc("xfs", "o")}),
		catalog.NewEntry(40, "Older", []catalog.Location{loc("xfs", "p")}),
	}
	var recs []scanner.Record
	recs = append(recs, record("Old", loc("xfs", "o")), record("Older", loc("xfs", "p")))
	for i := 0; i < 25; i++ {
		recs = append(recs, record(fmt.Sprintf("Show %02d", i), loc("xfs", fmt.Sprint(i))))
	}

	res, err := Reconcile(context.Background(), snapshot([]string{"xfs"}, nil, recs...), stored, Options{})
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, e := range res.Catalog {
		require.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true
	}
	for _, e := range res.Added {
		require.Greater(t, e.ID, 40)
	}
	require.Len(t, res.Added, 25)
}

func TestReconcileRemovesMissingEntries(t *testing.T) {
	stored := catalog.Catalog{
		catalog.NewEntry(1, "Gone", []catalog.Location{loc("xfs", "g")}),
		catalog.NewEntry(2, "Here", []catalog.Location{loc("xfs", "h")}),
	}
	snap := snapshot([]string{"xfs"}, nil, record("Here", loc("xfs", "h")))

	res, err := Reconcile(context.Background(), snap, stored, Options{})
	require.NoError(t, err)
	require.Len(t, res.Catalog, 1)
	require.Equal(t, 2, res.Catalog[0].ID)
	require.Len(t, res.Removed, 1)
	require.Equal(t, "Gone", res.Removed[0].Name)

	res, err = Reconcile(context.Background(), snap, stored, Options{Removal: KeepMissing})
	require.NoError(t, err)
	require.Len(t, res.Catalog, 2)
	require.Empty(t, res.Removed)
}

func TestReconcileDefersEntriesOnFailedProviders(t *testing.T) {
	stored := catalog.Catalog{
		catalog.NewEntry(1, "Only On Mixdrop", []catalog.Location{loc("mixdrop", "m")}),
		catalog.NewEntry(2, "Here", []catalog.Location{loc("xfs", "h"), loc("mixdrop", "mh")}),
	}
	snap := snapshot([]string{"xfs", "mixdrop"}, []string{"mixdrop"}, record("Here", loc("xfs", "h")))

	res, err := Reconcile(context.Background(), snap, stored, Options{})
	require.NoError(t, err)
	require.Len(t, res.Catalog, 2)
	require.Len(t, res.Deferred, 1)
	require.Equal(t, 1, res.Deferred[0].ID)
	require.Equal(t, []catalog.Location{loc("xfs", "h"), loc("mixdrop", "mh")}, res.Catalog[1].Locations)
	require.False(t, res.Changed())
}

func TestReconcilePrunesUnconfiguredProviders(t *testing.T) {
	stored := catalog.Catalog{
		catalog.NewEntry(1, "Naruto", []catalog.Location{loc("retired", "r"), loc("xfs", "x")}),
	}
	snap := snapshot([]string{"xfs"}, nil, record("Naruto", loc("xfs", "x")))

	res, err := Reconcile(context.Background(), snap, stored, Options{})
	require.NoError(t, err)
	require.Equal(t, []catalog.Location{loc("xfs", "x")}, res.Catalog[0].Locations)
	require.Len(t, res.Relocated, 1)
}

func TestReconcileRefusesToWipe(t *testing.T) {
	var stored catalog.Catalog
	for i := 1; i <= WipeThreshold+1; i++ {
		stored = append(stored, catalog.NewEntry(i, fmt.Sprint("Show ", i), []catalog.Location{loc("xfs", fmt.Sprint(i))}))
	}
	_, err := Reconcile(context.Background(), snapshot([]string{"xfs"}, nil), stored, Options{})
	require.ErrorIs(t, err, ErrAbortingCatalogWipe)

	small := stored[:WipeThreshold]
	res, err := Reconcile(context.Background(), snapshot([]string{"xfs"}, nil), small, Options{})
	require.NoError(t, err)
	require.Empty(t, res.Catalog)
	require.Len(t, res.Removed, WipeThreshold)
}

func TestMergeLocations(t *testing.T) {
	snap := snapshot([]string{"xfs", "mixdrop"}, nil)
	tests := []struct {
		name    string
		stored  []catalog.Location
		scanned []catalog.Location
		want    []catalog.Location
	}{
		{
			name:    "adds new provider",
			stored:  []catalog.Location{loc("xfs", "1")},
			scanned: []catalog.Location{loc("mixdrop", "2")},
			want:    []catalog.Location{loc("xfs", "1"), loc("mixdrop", "2")},
		},
		{
			name:    "keeps existing provider id",
			stored:  []catalog.Location{loc("xfs", "1")},
			scanned: []catalog.Location{loc("xfs", "9")},
			want:    []catalog.Location{loc("xfs", "1")},
		},
		{
			name:    "drops duplicates and unknown providers",
			stored:  []catalog.Location{loc("xfs", "1"), loc("xfs", "1"), loc("gone", "3")},
			scanned: []catalog.Location{loc("xfs", "1")},
			want:    []catalog.Location{loc("xfs", "1")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MergeLocations(tt.stored, tt.scanned, snap))
		})
	}
}

func TestAllocator(t *testing.T) {
	a := NewAllocator(catalog.Catalog{})
	require.Equal(t, 1, a.Next())
	require.Equal(t, 2, a.Next())

	a = NewAllocator(catalog.Catalog{catalog.NewEntry(7, "x", nil), catalog.NewEntry(2, "y", nil)})
	require.Equal(t, 8, a.Next())
	require.Equal(t, 9, a.Next())
}

func TestParseRemovalPolicy(t *testing.T) {
	p, err := ParseRemovalPolicy("")
	require.NoError(t, err)
	require.Equal(t, RemoveMissing, p)

	p, err = ParseRemovalPolicy("keep")
	require.NoError(t, err)
	require.Equal(t, KeepMissing, p)

	_, err = ParseRemovalPolicy("archive")
	require.Error(t, err)
}
