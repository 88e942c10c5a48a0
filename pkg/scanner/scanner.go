// Package scanner builds a deduplicated snapshot of every configured hosting provider.
package scanner

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/hosting"
	"github.com/otakuflix/adata/pkg/logger"
)

// Record is one distinct identity observed during a scan.
type Record struct {
	Key       string
	Name      string
	Letter    string
	Locations []catalog.Location
}

// Snapshot is the result of one scan.
type Snapshot struct {
	Records []Record
	// Providers is the configured provider set, including failed ones.
	Providers []string
	// Failed lists providers whose listing could not be fetched.
	Failed []string
}

// ProviderValid reports whether the provider is part of the configured set.
func (s Snapshot) ProviderValid(name string) bool { return slices.Contains(s.Providers, name) }

// ProviderFailed reports whether the provider failed during this scan.
func (s Snapshot) ProviderFailed(name string) bool { return slices.Contains(s.Failed, name) }

// AllFailed reports whether no provider produced a listing.
func (s Snapshot) AllFailed() bool { return len(s.Providers) > 0 && len(s.Failed) == len(s.Providers) }

// ByKey indexes records by identity key.
func (s Snapshot) ByKey() map[string]Record {
	m := make(map[string]Record, len(s.Records))
	for _, r := range s.Records {
		m[r.Key] = r
	}
	return m
}

// Scan lists every provider in order. A provider failure is logged and the
// provider contributes nothing to this snapshot.
func Scan(ctx context.Context, listers []hosting.Lister, log logger.Logger) Snapshot {
	log = logger.OrNop(log)

	snap := Snapshot{}
	byKey := map[string]*Record{}
	var order []string

	for _, l := range listers {
		snap.Providers = append(snap.Providers, l.Name())

		items, err := l.ListItems(ctx)
		if err != nil {
			log.Warnf("Skipping %s this scan: %v", l.Name(), err)
			snap.Failed = append(snap.Failed, l.Name())
			continue
		}
		log.Infof("%s listed %d folders", l.Name(), len(items))

		for _, it := range items {
			key := catalog.IdentityKey(it.Name)
			if key == "" {
				continue
			}
			rec, ok := byKey[key]
			if !ok {
				name := catalog.DisplayName(it.Name)
				rec = &Record{Key: key, Name: name, Letter: catalog.Letter(name)}
				byKey[key] = rec
				order = append(order, key)
			}
			loc := catalog.Location{Provider: l.Name(), ID: it.LocationID}
			if !slices.Contains(rec.Locations, loc) {
				rec.Locations = append(rec.Locations, loc)
			}
		}
	}

	snap.Records = make([]Record, 0, len(order))
	for _, k := range order {
		snap.Records = append(snap.Records, *byKey[k])
	}
	sort.SliceStable(snap.Records, func(i, j int) bool {
		a, b := strings.ToLower(snap.Records[i].Name), strings.ToLower(snap.Records[j].Name)
		if a != b {
			return a < b
		}
		return snap.Records[i].Key < snap.Records[j].Key
	})
	return snap
}
