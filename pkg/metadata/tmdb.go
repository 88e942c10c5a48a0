package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	DefaultTMDBURL = "https://api.themoviedb.org/3"
	tmdbImageBase  = "https://image.tmdb.org/t/p/original"
)

// TMDBClient is the general-purpose movie database of last resort. It supplies
// posters and ratings, never trailers.
type TMDBClient struct {
	apiClient
	apiKey  string
	baseURL string
}

func NewTMDB(apiKey, baseURL string, client *retryablehttp.Client, pacer *whttp.Pacer) (*TMDBClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	if baseURL == "" {
		baseURL = DefaultTMDBURL
	}
	return &TMDBClient{
		apiClient: apiClient{name: TMDB, client: client, pacer: pacer},
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}, nil
}

func (t *TMDBClient) Name() string { return TMDB }

func (t *TMDBClient) Lookup(ctx context.Context, q Query) (Record, error) {
	query := strings.TrimSpace(q.Name)
	if query == "" {
		return Record{}, ErrNoMatch
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("api_key", t.apiKey)
	body, err := t.getJSON(ctx, fmt.Sprintf("%s/search/multi?%s", t.baseURL, params.Encode()))
	if err != nil {
		return Record{}, err
	}

	var hit gjson.Result
	gjson.Get(body, "results").ForEach(func(_, r gjson.Result) bool {
		mt := r.Get("media_type").String()
		if mt == "tv" || mt == "movie" {
			hit = r
			return false
		}
		return true
	})
	if !hit.Exists() {
		return Record{}, ErrNoMatch
	}

	rec := Record{Source: TMDB}
	if p := hit.Get("poster_path").String(); p != "" {
		rec.Poster = tmdbImageBase + p
	}
	if v := hit.Get("vote_count"); v.Type == gjson.Number && v.Int() > 0 {
		rec.Votes = catalog.KnownCount(v.Int())
		rec.Rating = score10(hit.Get("vote_average").Float())
	}
	return rec, nil
}
