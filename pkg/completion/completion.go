// Package completion runs the batch passes that fill missing catalog fields.
package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/metadata"
	"github.com/otakuflix/adata/pkg/storage"
)

// Pass fills one field group across the catalog. Fill edits c in place and
// returns how many entries it changed.
type Pass interface {
	Name() string
	Fill(ctx context.Context, c catalog.Catalog) (int, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config is shared by the metadata-backed passes.
type Config struct {
	Providers []metadata.Provider
	Shortener metadata.Shortener // defaults to NopShortener
	// EntryDelay separates consecutive entries that needed a lookup.
	EntryDelay time.Duration
	// Debounce is the wait before a status change is confirmed.
	Debounce time.Duration
	Sleep    SleepFunc     // defaults to Sleep
	Log      logger.Logger // optional
}

func (c *Config) log() logger.Logger { return logger.OrNop(c.Log) }

func (c *Config) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (c *Config) shortener() metadata.Shortener {
	if c.Shortener == nil {
		return metadata.NopShortener{}
	}
	return c.Shortener
}

// provider returns the configured provider with the given name.
func (c *Config) provider(name string) (metadata.Provider, bool) {
	for _, p := range c.Providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// chain resolves names to configured providers, skipping unknown ones.
func (c *Config) chain(names ...string) []metadata.Provider {
	var out []metadata.Provider
	for _, n := range names {
		if p, ok := c.provider(n); ok {
			out = append(out, p)
		}
	}
	return out
}

// Result reports the outcome of Run.
type Result struct {
	Pass    string
	Scanned int
	Updated int
	Written bool
	Version storage.Version
	Changes []storage.Change
}

// Run reads the catalog, applies pass and writes once if anything changed.
// A version conflict is returned as is; the pass is not retried.
func Run(ctx context.Context, store storage.Store, pass Pass, log logger.Logger) (*Result, error) {
	log = logger.OrNop(log)

	stored, version, err := store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	res := &Result{Pass: pass.Name(), Scanned: len(stored), Version: version}

	working := stored.Clone()
	updated, err := pass.Fill(ctx, working)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pass.Name(), err)
	}
	res.Updated = updated

	if updated == 0 || working.Equal(stored) {
		log.Infof("%s: no changes, nothing to write", pass.Name())
		return res, nil
	}

	newVersion, err := store.Write(ctx, working, version)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			log.Errorf("%s: catalog changed during the run; rerun to pick up the new version", pass.Name())
		}
		return nil, fmt.Errorf("writing catalog: %w", err)
	}
	res.Written = true
	res.Version = newVersion
	res.Changes = storage.Diff(stored, working)

	if cl, ok := store.(storage.ChangeLogger); ok {
		if err := cl.LogChanges(ctx, res.Changes); err != nil {
			log.Warnf("Could not log changes: %v", err)
		}
	}
	log.Infof("%s: updated %d of %d entries", pass.Name(), updated, len(stored))
	return res, nil
}

// fillChain walks providers in order, filling each field of fields that need
// reports as missing from the first provider that has it. Records already in
// cache are reused. It reports which fields were filled.
func (c *Config) fillChain(ctx context.Context, e *catalog.Entry, chain []metadata.Provider, q metadata.Query, fields []metadata.Field, need func(catalog.Entry, metadata.Field) bool, cache map[string]metadata.Record) []metadata.Field {
	var missing []metadata.Field
	for _, f := range fields {
		if need(*e, f) {
			missing = append(missing, f)
		}
	}

	var filled []metadata.Field
	for _, p := range chain {
		if len(missing) == 0 || ctx.Err() != nil {
			break
		}
		rec, ok := cache[p.Name()]
		if !ok {
			var err error
			rec, err = metadata.Lookup(ctx, p, q)
			if err != nil {
				if !errors.Is(err, metadata.ErrNoMatch) {
					c.log().Warnf("%s lookup for %q failed: %v", p.Name(), q.Name, err)
				}
				continue
			}
			if cache != nil {
				cache[p.Name()] = rec
			}
		}
		remaining := missing[:0:0]
		for _, f := range missing {
			if rec.Has(f) {
				rec.Apply(f, e)
				filled = append(filled, f)
				c.log().Debugf("%q: %s from %s", e.Name, f, p.Name())
				continue
			}
			remaining = append(remaining, f)
		}
		missing = remaining
	}
	return filled
}
