package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultJikanURL = "https://api.jikan.moe/v4"

// JikanClient queries the Jikan (MyAnimeList) REST API.
type JikanClient struct {
	apiClient
	baseURL string
}

// NewJikan builds a Jikan provider. An empty baseURL uses the public API.
func NewJikan(baseURL string, client *retryablehttp.Client, pacer *whttp.Pacer) *JikanClient {
	if baseURL == "" {
		baseURL = DefaultJikanURL
	}
	return &JikanClient{
		apiClient: apiClient{name: Jikan, client: client, pacer: pacer},
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (j *JikanClient) Name() string { return Jikan }

func (j *JikanClient) Lookup(ctx context.Context, q Query) (Record, error) {
	body, err := j.getJSON(ctx, fmt.Sprintf("%s/anime?q=%s&limit=5", j.baseURL, url.QueryEscape(q.Name)))
	if err != nil {
		return Record{}, err
	}
	anime := gjson.Get(body, "data.0")
	if !anime.Exists() {
		return Record{}, ErrNoMatch
	}

	rec := parseJikanAnime(anime)

	if q.Related {
		malID := anime.Get("mal_id").Int()
		if rel, err := j.relations(ctx, malID); err == nil {
			rec.Related = rel
		}
		if sim, err := j.recommendations(ctx, malID); err == nil {
			rec.Similar = sim
		}
	}
	return rec, nil
}

func parseJikanAnime(anime gjson.Result) Record {
	rec := Record{
		Source:       Jikan,
		JapaneseName: anime.Get("title_japanese").String(),
		Poster:       anime.Get("images.jpg.large_image_url").String(),
		Synopsis:     strings.TrimSpace(anime.Get("synopsis").String()),
		Genre:        joinNames(anime.Get("genres"), "name"),
		Type:         anime.Get("type").String(),
		Status:       catalog.NormalizeStatus(anime.Get("status").String()),
		PGRating:     anime.Get("rating").String(),
		Studio:       joinNames(anime.Get("studios"), "name"),
		Producers:    joinNames(anime.Get("producers"), "name"),
	}
	if rec.Status == catalog.StatusUnknown {
		rec.Status = ""
	}
	if a := anime.Get("airing"); a.Exists() && a.Type != gjson.Null {
		rec.Airing = boolPtr(a.Bool())
	}
	if ep := anime.Get("episodes"); ep.Type == gjson.Number {
		rec.Episodes = catalog.KnownCount(ep.Int())
	}
	if s := anime.Get("score"); s.Type == gjson.Number {
		rec.Rating = score10(s.Float())
	}
	if v := anime.Get("scored_by"); v.Type == gjson.Number {
		rec.Votes = catalog.KnownCount(v.Int())
	}

	videoID := anime.Get("trailer.youtube_id").String()
	if videoID == "" {
		videoID = youtubeID(anime.Get("trailer.url").String())
	}
	rec.Trailer, rec.Banner = youtubeTrailer(videoID)

	for _, path := range []string{"title", "title_english", "title_japanese"} {
		if t := strings.TrimSpace(anime.Get(path).String()); t != "" {
			rec.AltNames = append(rec.AltNames, t)
		}
	}
	anime.Get("title_synonyms").ForEach(func(_, v gjson.Result) bool {
		if t := strings.TrimSpace(v.String()); t != "" {
			rec.AltNames = append(rec.AltNames, t)
		}
		return true
	})
	return rec
}

// youtubeID extracts the v= parameter of a watch URL.
func youtubeID(raw string) string {
	if !strings.Contains(raw, "youtube.com") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

func (j *JikanClient) relations(ctx context.Context, malID int64) (catalog.Names, error) {
	body, err := j.getJSON(ctx, fmt.Sprintf("%s/anime/%d/relations", j.baseURL, malID))
	if err != nil {
		return catalog.Names{}, err
	}
	var names []string
	gjson.Get(body, "data.#.entry").ForEach(func(_, entries gjson.Result) bool {
		entries.ForEach(func(_, e gjson.Result) bool {
			if n := strings.TrimSpace(e.Get("name").String()); n != "" {
				names = append(names, n)
			}
			return true
		})
		return true
	})
	return catalog.KnownNames(names), nil
}

func (j *JikanClient) recommendations(ctx context.Context, malID int64) (string, error) {
	body, err := j.getJSON(ctx, fmt.Sprintf("%s/anime/%d/recommendations", j.baseURL, malID))
	if err != nil {
		return "", err
	}
	return joinNames(gjson.Get(body, "data.#.entry"), "title"), nil
}
