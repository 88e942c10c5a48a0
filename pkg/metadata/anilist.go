package metadata

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const DefaultAniListURL = "https://graphql.anilist.co"

const aniListQuery = `query ($search: String) {
  Media(search: $search, type: ANIME) {
    title { romaji english native }
    coverImage { extraLarge large }
    bannerImage
    description
    format
    status
    episodes
    averageScore
    popularity
    genres
    trailer { id site }
    studios(isMain: true) { nodes { name } }
  }
}`

// AniListClient queries the AniList GraphQL API.
type AniListClient struct {
	apiClient
	endpoint string
}

func NewAniList(endpoint string, client *retryablehttp.Client, pacer *whttp.Pacer) *AniListClient {
	if endpoint == "" {
		endpoint = DefaultAniListURL
	}
	return &AniListClient{
		apiClient: apiClient{name: AniList, client: client, pacer: pacer},
		endpoint:  endpoint,
	}
}

func (a *AniListClient) Name() string { return AniList }

// Lookup tries the name first, then every alternative name.
func (a *AniListClient) Lookup(ctx context.Context, q Query) (Record, error) {
	names := append([]string{q.Name}, q.AltNames...)
	tried := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || tried[name] {
			continue
		}
		tried[name] = true

		rec, err := a.search(ctx, name)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		return rec, err
	}
	return Record{}, ErrNoMatch
}

func (a *AniListClient) search(ctx context.Context, name string) (Record, error) {
	payload, _ := sjson.Set(`{}`, "query", aniListQuery)
	payload, _ = sjson.Set(payload, "variables.search", name)

	res, err := a.do(ctx, &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     a.endpoint,
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/json"}},
		Body:    []byte(payload),
	})
	if err != nil {
		return Record{}, err
	}
	body, err := a.checkJSON(res)
	if err != nil {
		return Record{}, err
	}
	media := gjson.Get(body, "data.Media")
	if !media.Exists() || media.Type == gjson.Null {
		return Record{}, ErrNoMatch
	}
	return parseAniListMedia(media), nil
}

func parseAniListMedia(media gjson.Result) Record {
	rec := Record{
		Source:       AniList,
		JapaneseName: media.Get("title.native").String(),
		Poster:       media.Get("coverImage.extraLarge").String(),
		Banner:       media.Get("bannerImage").String(),
		Synopsis:     stripHTML(media.Get("description").String()),
		Type:         strings.ReplaceAll(media.Get("format").String(), "_", " "),
		Studio:       joinNames(media.Get("studios.nodes"), "name"),
	}
	if rec.Poster == "" {
		rec.Poster = media.Get("coverImage.large").String()
	}
	if status := catalog.NormalizeStatus(media.Get("status").String()); status != catalog.StatusUnknown {
		rec.Status = status
		switch status {
		case catalog.StatusCurrent:
			rec.Airing = boolPtr(true)
		case catalog.StatusFinished:
			rec.Airing = boolPtr(false)
		}
	}
	if ep := media.Get("episodes"); ep.Type == gjson.Number {
		rec.Episodes = catalog.KnownCount(ep.Int())
	}
	if s := media.Get("averageScore"); s.Type == gjson.Number {
		rec.Rating = score100(s.Float())
	}
	if p := media.Get("popularity"); p.Type == gjson.Number {
		rec.Votes = catalog.KnownCount(p.Int())
	}
	var genres []string
	media.Get("genres").ForEach(func(_, g gjson.Result) bool {
		genres = append(genres, g.String())
		return true
	})
	if len(genres) > 0 {
		rec.Genre = catalog.JoinList(genres)
	}
	if strings.EqualFold(media.Get("trailer.site").String(), "youtube") {
		rec.Trailer, _ = youtubeTrailer(media.Get("trailer.id").String())
	}
	for _, path := range []string{"title.romaji", "title.english", "title.native"} {
		if t := strings.TrimSpace(media.Get(path).String()); t != "" {
			rec.AltNames = append(rec.AltNames, t)
		}
	}
	return rec
}

// stripHTML returns the text content of an HTML fragment.
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(s)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}
