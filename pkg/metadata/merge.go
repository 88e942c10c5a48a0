package metadata

import (
	"slices"
	"strings"

	"github.com/otakuflix/adata/pkg/catalog"
)

// Field names a mergeable entry field.
type Field string

const (
	FieldPoster       Field = "poster"
	FieldBanner       Field = "banner"
	FieldTrailer      Field = "trailer"
	FieldSynopsis     Field = "synopsis"
	FieldGenre        Field = "genre"
	FieldRelated      Field = "related"
	FieldSimilar      Field = "similar"
	FieldJapaneseName Field = "japanese_name"
	FieldType         Field = "type"
	FieldStatus       Field = "status"
	FieldAiring       Field = "airing"
	FieldEpisodes     Field = "episodes"
	FieldPGRating     Field = "pg_rating"
	FieldStudio       Field = "studio"
	FieldProducers    Field = "producers"
	FieldRating       Field = "rating"
	FieldVotes        Field = "votes"
)

// Field groups owned by the completion passes.
var (
	ImageFields  = []Field{FieldPoster, FieldBanner}
	RatingFields = []Field{FieldRating, FieldVotes}
	StatsFields  = []Field{FieldType, FieldStatus, FieldAiring, FieldStudio, FieldProducers, FieldEpisodes}
	StatusFields = []Field{FieldStatus, FieldAiring}
)

// Priority is the per-field provider order. The first provider in the list
// with a usable value wins that field.
type Priority map[Field][]string

// DefaultPriority is used for the initial enrichment of new entries.
func DefaultPriority() Priority {
	return Priority{
		FieldPoster:       {Jikan, Kitsu, AniList, TMDB},
		FieldBanner:       {Jikan, Kitsu, AniList},
		FieldTrailer:      {Jikan, Kitsu, AniList},
		FieldSynopsis:     {Kitsu, Jikan, AniList},
		FieldGenre:        {Jikan, AniList},
		FieldRelated:      {Jikan},
		FieldSimilar:      {Jikan},
		FieldJapaneseName: {Jikan, AniList, Kitsu},
		FieldType:         {Jikan, Kitsu, AniList},
		FieldStatus:       {Jikan, Kitsu, AniList},
		FieldAiring:       {Jikan, Kitsu, AniList},
		FieldEpisodes:     {Jikan, Kitsu, AniList},
		FieldPGRating:     {Jikan, Kitsu},
		FieldStudio:       {Jikan, AniList},
		FieldProducers:    {Jikan},
		FieldRating:       {Jikan, Kitsu, AniList, TMDB},
	}
}

// Providers returns every provider named in p, in first-seen field order.
func (p Priority) Providers(fields ...Field) []string {
	var out []string
	for _, f := range fields {
		for _, name := range p.order(f) {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// order returns the provider order for f. Votes follow the rating order
// unless an explicit votes order is set.
func (p Priority) order(f Field) []string {
	if f == FieldVotes {
		if names, ok := p[FieldVotes]; ok {
			return names
		}
		return p[FieldRating]
	}
	return p[f]
}

// usable reports whether a text value is present and not a placeholder.
func usable(s string) bool {
	return !catalog.IsUnset(s) && !strings.EqualFold(strings.TrimSpace(s), catalog.StatusUnknown)
}

// Has reports whether rec carries a usable value for f.
func (r Record) Has(f Field) bool {
	switch f {
	case FieldPoster:
		return usable(r.Poster)
	case FieldBanner:
		return usable(r.Banner)
	case FieldTrailer:
		return usable(r.Trailer)
	case FieldSynopsis:
		return usable(r.Synopsis)
	case FieldGenre:
		return usable(r.Genre)
	case FieldRelated:
		return r.Related.Known && len(r.Related.Values) > 0
	case FieldSimilar:
		return usable(r.Similar)
	case FieldJapaneseName:
		return usable(r.JapaneseName)
	case FieldType:
		return usable(r.Type)
	case FieldStatus:
		return usable(r.Status)
	case FieldAiring:
		return r.Airing != nil
	case FieldEpisodes:
		return r.Episodes.Known
	case FieldPGRating:
		return usable(r.PGRating)
	case FieldStudio:
		return usable(r.Studio)
	case FieldProducers:
		return usable(r.Producers)
	case FieldRating, FieldVotes:
		// Votes only count alongside the score they were cast for.
		return r.Rating.Known
	}
	return false
}

// Apply copies field f from r into e. Callers check Has first.
func (r Record) Apply(f Field, e *catalog.Entry) {
	switch f {
	case FieldPoster:
		e.Poster = r.Poster
	case FieldBanner:
		e.Banner = r.Banner
	case FieldTrailer:
		e.Trailer = r.Trailer
	case FieldSynopsis:
		e.Synopsis = r.Synopsis
	case FieldGenre:
		e.Genre = r.Genre
	case FieldRelated:
		e.Related = catalog.KnownNames(slices.Clone(r.Related.Values))
	case FieldSimilar:
		e.Similar = r.Similar
	case FieldJapaneseName:
		e.JapaneseName = r.JapaneseName
	case FieldType:
		e.Type = r.Type
	case FieldStatus:
		e.Status = r.Status
	case FieldAiring:
		e.Airing = *r.Airing
	case FieldEpisodes:
		e.TotalEpisodes = r.Episodes
	case FieldPGRating:
		e.PGRating = r.PGRating
	case FieldStudio:
		e.Studio = r.Studio
	case FieldProducers:
		e.Producers = r.Producers
	case FieldRating:
		e.Rating = r.Rating
	case FieldVotes:
		// May be unknown; the pair is taken as the provider reported it.
		e.Votes = r.Votes
	}
}

// AllFields lists every mergeable field in a fixed order.
var AllFields = []Field{
	FieldPoster, FieldBanner, FieldTrailer, FieldSynopsis, FieldGenre, FieldRelated,
	FieldSimilar, FieldJapaneseName, FieldType, FieldStatus, FieldAiring, FieldEpisodes,
	FieldPGRating, FieldStudio, FieldProducers, FieldRating, FieldVotes,
}

// Merge fills e from records keyed by provider name. For every field the first
// provider in priority order with a usable value wins; fields no provider has
// are left as they are. Rating and votes form one pair: both come from the
// first provider with a known rating, following the rating priority.
// Airing is then forced to agree with the status.
// Merge is pure: the same inputs always give the same entry.
func Merge(e catalog.Entry, records map[string]Record, priority Priority, fields ...Field) catalog.Entry {
	if len(fields) == 0 {
		fields = AllFields
	}
	out := e.Clone()
	touchedStatus := false
	for _, f := range fields {
		for _, name := range priority.order(f) {
			rec, ok := records[name]
			if !ok || !rec.Has(f) {
				continue
			}
			rec.Apply(f, &out)
			if f == FieldStatus || f == FieldAiring {
				touchedStatus = true
			}
			break
		}
	}
	if touchedStatus {
		out.Airing = catalog.ValidateAiring(out.Status, out.Airing)
	}
	return out
}
