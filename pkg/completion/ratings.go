package completion

import (
	"context"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/metadata"
)

// RatingFill fills missing ratings and vote counts.
type RatingFill struct {
	*Config
	// Chain defaults to jikan, anilist, kitsu, tmdb.
	Chain []string
}

func NewRatingFill(cfg *Config) *RatingFill {
	return &RatingFill{Config: cfg, Chain: []string{metadata.Jikan, metadata.AniList, metadata.Kitsu, metadata.TMDB}}
}

func (f *RatingFill) Name() string { return "ratings" }

// needsRating treats rating and votes as one pair; an entry with a known
// rating keeps its votes as they are.
func needsRating(e catalog.Entry, field metadata.Field) bool {
	switch field {
	case metadata.FieldRating, metadata.FieldVotes:
		return !e.Rating.Known
	}
	return false
}

func (f *RatingFill) Fill(ctx context.Context, c catalog.Catalog) (int, error) {
	chain := f.chain(f.Chain...)
	updated := 0
	first := true

	for i := range c {
		if !needsRating(c[i], metadata.FieldRating) {
			continue
		}
		if !first {
			if err := f.sleep(ctx, f.EntryDelay); err != nil {
				return updated, err
			}
		}
		first = false

		filled := f.fillChain(ctx, &c[i], chain, metadata.Query{Name: c[i].Name}, metadata.RatingFields, needsRating, map[string]metadata.Record{})
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if len(filled) > 0 {
			updated++
			f.log().Infof("%q: rating %s (%s votes)", c[i].Name, c[i].Rating, c[i].Votes)
		}
	}
	return updated, nil
}
