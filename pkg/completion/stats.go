package completion

import (
	"context"
	"slices"
	"strings"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/metadata"
)

// StatsFill fills missing type, status, airing, studio, producers and episode
// counts. A status that disagrees with the airing flag is refetched too.
type StatsFill struct {
	*Config
	// Chain defaults to jikan, then kitsu.
	Chain []string
}

func NewStatsFill(cfg *Config) *StatsFill {
	return &StatsFill{Config: cfg, Chain: []string{metadata.Jikan, metadata.Kitsu}}
}

func (f *StatsFill) Name() string { return "stats" }

func unknownText(s string) bool {
	return catalog.IsUnset(s) || strings.EqualFold(strings.TrimSpace(s), catalog.StatusUnknown)
}

func needsStats(e catalog.Entry, field metadata.Field) bool {
	switch field {
	case metadata.FieldType:
		return unknownText(e.Type)
	case metadata.FieldStatus, metadata.FieldAiring:
		// Airing has no sentinel; it is filled alongside an unknown status.
		return unknownText(e.Status) || !catalog.Consistent(e.Status, e.Airing)
	case metadata.FieldStudio:
		return unknownText(e.Studio)
	case metadata.FieldProducers:
		return unknownText(e.Producers)
	case metadata.FieldEpisodes:
		return !e.TotalEpisodes.Known
	}
	return false
}

func (f *StatsFill) Fill(ctx context.Context, c catalog.Catalog) (int, error) {
	chain := f.chain(f.Chain...)
	updated := 0
	first := true

	for i := range c {
		if !slices.ContainsFunc(metadata.StatsFields, func(field metadata.Field) bool { return needsStats(c[i], field) }) {
			continue
		}
		if !first {
			if err := f.sleep(ctx, f.EntryDelay); err != nil {
				return updated, err
			}
		}
		first = false

		filled := f.fillChain(ctx, &c[i], chain, metadata.Query{Name: c[i].Name}, metadata.StatsFields, needsStats, map[string]metadata.Record{})
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		repaired := !catalog.Consistent(c[i].Status, c[i].Airing)
		c[i].Airing = catalog.ValidateAiring(c[i].Status, c[i].Airing)
		if len(filled) == 0 && !repaired {
			continue
		}
		updated++
		f.log().Infof("%q: type %s, status %s, studio %s, %s episodes", c[i].Name, c[i].Type, c[i].Status, c[i].Studio, c[i].TotalEpisodes)
	}
	return updated, nil
}
