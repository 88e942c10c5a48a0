package metadata

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/logger"
)

// EnricherConfig holds everything an Enricher needs.
type EnricherConfig struct {
	Providers   []Provider
	Priority    Priority      // defaults to DefaultPriority()
	Shortener   Shortener     // defaults to NopShortener
	Concurrency int           // defaults to 3 if <= 0
	Log         logger.Logger // optional; nil = no logging
}

// Enricher populates freshly created entries from every configured provider.
type Enricher struct {
	providers   []Provider
	priority    Priority
	shortener   Shortener
	concurrency int
	log         logger.Logger
}

func NewEnricher(cfg EnricherConfig) *Enricher {
	e := &Enricher{
		providers:   cfg.Providers,
		priority:    cfg.Priority,
		shortener:   cfg.Shortener,
		concurrency: cfg.Concurrency,
		log:         logger.OrNop(cfg.Log),
	}
	if e.priority == nil {
		e.priority = DefaultPriority()
	}
	if e.shortener == nil {
		e.shortener = NopShortener{}
	}
	if e.concurrency <= 0 {
		e.concurrency = 3
	}
	return e
}

// Enrich enriches entries concurrently and returns them in input order.
func (e *Enricher) Enrich(ctx context.Context, entries []catalog.Entry) []catalog.Entry {
	out := make([]catalog.Entry, len(entries))
	if len(entries) == 0 {
		return out
	}

	idxChan := make(chan int, len(entries))
	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxChan {
				// Each worker writes only its own slot.
				out[idx] = e.EnrichEntry(ctx, entries[idx])
			}
		}()
	}
	for i := range entries {
		idxChan <- i
	}
	close(idxChan)
	wg.Wait()
	return out
}

// EnrichEntry queries every provider for one entry and merges the answers.
// Provider failures are logged and skipped.
func (e *Enricher) EnrichEntry(ctx context.Context, entry catalog.Entry) catalog.Entry {
	records := e.Collect(ctx, entry.Name, e.providers)
	merged := Merge(entry, records, e.priority)
	merged.Poster = e.shorten(ctx, merged.Poster)
	merged.Banner = e.shorten(ctx, merged.Banner)

	e.log.Infof("Enriched %q (id %d) from %d provider(s)", entry.Name, entry.ID, len(records))
	return merged
}

// Collect looks name up on each provider and returns the records that came back.
// Names learned from earlier providers are passed on as alternatives.
func (e *Enricher) Collect(ctx context.Context, name string, providers []Provider) map[string]Record {
	records := make(map[string]Record, len(providers))
	relatedFrom := e.priority.Providers(FieldRelated, FieldSimilar)
	var alt []string
	for _, p := range providers {
		if ctx.Err() != nil {
			break
		}
		rec, err := Lookup(ctx, p, Query{Name: name, AltNames: alt, Related: slices.Contains(relatedFrom, p.Name())})
		switch {
		case errors.Is(err, ErrNoMatch):
			e.log.Debugf("%s: no match for %q", p.Name(), name)
			continue
		case err != nil:
			e.log.Warnf("%s lookup for %q failed: %v", p.Name(), name, err)
			continue
		}
		records[p.Name()] = rec
		alt = appendUnique(alt, rec.AltNames...)
	}
	return records
}

func (e *Enricher) shorten(ctx context.Context, u string) string {
	if catalog.IsUnset(u) {
		return u
	}
	return e.shortener.Shorten(ctx, u)
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
