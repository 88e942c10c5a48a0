package completion

import (
	"context"
	"errors"
	"slices"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/metadata"
)

// ImageFill fills missing posters and banners. Alternative titles are learned
// from jikan first so anilist can search by them.
type ImageFill struct {
	*Config
	// Chain defaults to anilist, jikan, kitsu, tmdb. tmdb only has posters.
	Chain []string
}

func NewImageFill(cfg *Config) *ImageFill {
	return &ImageFill{Config: cfg, Chain: []string{metadata.AniList, metadata.Jikan, metadata.Kitsu, metadata.TMDB}}
}

func (f *ImageFill) Name() string { return "images" }

func needsImage(e catalog.Entry, field metadata.Field) bool {
	switch field {
	case metadata.FieldPoster:
		return catalog.IsUnset(e.Poster)
	case metadata.FieldBanner:
		return catalog.IsUnset(e.Banner)
	}
	return false
}

func (f *ImageFill) Fill(ctx context.Context, c catalog.Catalog) (int, error) {
	chain := f.chain(f.Chain...)
	jikan, hasJikan := f.provider(metadata.Jikan)
	updated := 0
	first := true

	for i := range c {
		if !needsImage(c[i], metadata.FieldPoster) && !needsImage(c[i], metadata.FieldBanner) {
			continue
		}
		if !first {
			if err := f.sleep(ctx, f.EntryDelay); err != nil {
				return updated, err
			}
		}
		first = false

		cache := map[string]metadata.Record{}
		q := metadata.Query{Name: c[i].Name}
		if hasJikan {
			rec, err := metadata.Lookup(ctx, jikan, q)
			switch {
			case err == nil:
				cache[metadata.Jikan] = rec
				q.AltNames = slices.DeleteFunc(slices.Clone(rec.AltNames), func(n string) bool { return n == c[i].Name })
			case !errors.Is(err, metadata.ErrNoMatch):
				f.log().Warnf("jikan lookup for %q failed: %v", c[i].Name, err)
			}
		}

		filled := f.fillChain(ctx, &c[i], chain, q, metadata.ImageFields, needsImage, cache)
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		if len(filled) == 0 {
			f.log().Infof("%q: no images found", c[i].Name)
			continue
		}
		for _, field := range filled {
			switch field {
			case metadata.FieldPoster:
				c[i].Poster = f.shortener().Shorten(ctx, c[i].Poster)
			case metadata.FieldBanner:
				c[i].Banner = f.shortener().Shorten(ctx, c[i].Banner)
			}
		}
		updated++
		f.log().Infof("%q: filled %v", c[i].Name, filled)
	}
	return updated, nil
}
