// Package pipeline composes scan, reconcile, enrich and write into one sync run.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/hosting"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/metadata"
	"github.com/otakuflix/adata/pkg/reconcile"
	"github.com/otakuflix/adata/pkg/scanner"
	"github.com/otakuflix/adata/pkg/storage"
)

// ErrNoProviders is returned when every hosting provider failed to list.
var ErrNoProviders = errors.New("every hosting provider failed; nothing to reconcile")

// Config holds everything Sync needs.
type Config struct {
	Store    storage.Store
	Listers  []hosting.Lister
	Enricher *metadata.Enricher // optional; nil leaves new entries bare
	Removal  reconcile.RemovalPolicy
	DryRun   bool
	Log      logger.Logger // optional; nil = no logging

	// OnNoChanges runs when the reconciled catalog equals the stored one.
	// Nil = nothing.
	OnNoChanges func(ctx context.Context) error
}

// Result holds the outcome of one sync run.
type Result struct {
	Snapshot  scanner.Snapshot
	Reconcile *reconcile.Result
	Written   bool
	Version   storage.Version
	Changes   []storage.Change
}

// Sync scans every provider, reconciles against the stored catalog, enriches
// new entries and writes the result once. A version conflict aborts the run.
func Sync(ctx context.Context, cfg Config) (*Result, error) {
	log := logger.OrNop(cfg.Log)

	stored, version, err := cfg.Store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	log.Infof("Loaded %d entries", len(stored))

	snap := scanner.Scan(ctx, cfg.Listers, log)
	if snap.AllFailed() {
		return nil, ErrNoProviders
	}
	result := &Result{Snapshot: snap, Version: version}

	opts := reconcile.Options{Removal: cfg.Removal, Log: log}
	if cfg.Enricher != nil {
		opts.Enrich = cfg.Enricher.Enrich
	}
	rec, err := reconcile.Reconcile(ctx, snap, stored, opts)
	if err != nil {
		return nil, err
	}
	result.Reconcile = rec
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !rec.Changed() {
		log.Infof("No changes detected")
		if cfg.OnNoChanges != nil {
			return result, cfg.OnNoChanges(ctx)
		}
		return result, nil
	}

	result.Changes = storage.Diff(stored, rec.Catalog)
	log.Infof("%d added, %d removed, %d relocated, %d deferred", len(rec.Added), len(rec.Removed), len(rec.Relocated), len(rec.Deferred))

	if cfg.DryRun {
		log.Infof("Dry run: not writing %d entries", len(rec.Catalog))
		return result, nil
	}

	newVersion, err := cfg.Store.Write(ctx, rec.Catalog, version)
	if err != nil {
		return nil, fmt.Errorf("writing catalog: %w", err)
	}
	result.Written = true
	result.Version = newVersion

	if cl, ok := cfg.Store.(storage.ChangeLogger); ok {
		if err := cl.LogChanges(ctx, result.Changes); err != nil {
			log.Warnf("Could not log changes: %v", err)
		}
	}
	return result, nil
}

// Summary counts entries per provider and missing fields.
type Summary struct {
	Entries     int
	MinID       int
	MaxID       int
	PerProvider map[string]int
	NoPoster    int
	NoBanner    int
	NoRating    int
	NoStats     int
	NotFinished int
}

// Summarize describes a catalog for the status table.
func Summarize(c catalog.Catalog) Summary {
	s := Summary{Entries: len(c), PerProvider: map[string]int{}, MaxID: c.MaxID()}
	for i, e := range c {
		if i == 0 || e.ID < s.MinID {
			s.MinID = e.ID
		}
		seen := map[string]bool{}
		for _, l := range e.Locations {
			if !seen[l.Provider] {
				s.PerProvider[l.Provider]++
				seen[l.Provider] = true
			}
		}
		if catalog.IsUnset(e.Poster) {
			s.NoPoster++
		}
		if catalog.IsUnset(e.Banner) {
			s.NoBanner++
		}
		if !e.Rating.Known {
			s.NoRating++
		}
		if catalog.IsUnset(e.Type) || catalog.IsUnset(e.Status) || !e.TotalEpisodes.Known {
			s.NoStats++
		}
		if catalog.NormalizeStatus(e.Status) != catalog.StatusFinished {
			s.NotFinished++
		}
	}
	return s
}
