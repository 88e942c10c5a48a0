package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
)

const DefaultKitsuURL = "https://kitsu.io/api/edge"

var kitsuAccept = whttp.WHTTPHeader{Name: "Accept", Value: "application/vnd.api+json"}

// KitsuClient queries the Kitsu JSON:API.
type KitsuClient struct {
	apiClient
	baseURL string
}

func NewKitsu(baseURL string, client *retryablehttp.Client, pacer *whttp.Pacer) *KitsuClient {
	if baseURL == "" {
		baseURL = DefaultKitsuURL
	}
	return &KitsuClient{
		apiClient: apiClient{name: Kitsu, client: client, pacer: pacer},
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

func (k *KitsuClient) Name() string { return Kitsu }

func (k *KitsuClient) Lookup(ctx context.Context, q Query) (Record, error) {
	target := fmt.Sprintf("%s/anime?filter[text]=%s&page[limit]=5", k.baseURL, url.QueryEscape(q.Name))
	body, err := k.getJSON(ctx, target, kitsuAccept)
	if err != nil {
		return Record{}, err
	}
	attrs := gjson.Get(body, "data.0.attributes")
	if !attrs.Exists() {
		return Record{}, ErrNoMatch
	}
	return parseKitsuAttributes(attrs), nil
}

func parseKitsuAttributes(attrs gjson.Result) Record {
	rec := Record{
		Source:       Kitsu,
		JapaneseName: attrs.Get("titles.ja_jp").String(),
		Poster:       attrs.Get("posterImage.original").String(),
		Banner:       attrs.Get("coverImage.original").String(),
		Synopsis:     strings.TrimSpace(attrs.Get("synopsis").String()),
		Type:         kitsuShowType(attrs.Get("showType").String()),
		PGRating:     kitsuAgeRating(attrs),
	}

	if status := catalog.NormalizeStatus(attrs.Get("status").String()); status != catalog.StatusUnknown {
		rec.Status = status
		switch status {
		case catalog.StatusCurrent:
			rec.Airing = boolPtr(true)
		case catalog.StatusFinished, catalog.StatusUpcoming:
			rec.Airing = boolPtr(false)
		}
	}
	if ep := attrs.Get("episodeCount"); ep.Type == gjson.Number {
		rec.Episodes = catalog.KnownCount(ep.Int())
	}
	// averageRating is a 0-100 decimal string.
	if avg := attrs.Get("averageRating").String(); avg != "" {
		if v, err := strconv.ParseFloat(avg, 64); err == nil {
			rec.Rating = score100(v)
		}
	}
	if n := attrs.Get("userCount"); n.Type == gjson.Number {
		rec.Votes = catalog.KnownCount(n.Int())
	}
	rec.Trailer, _ = youtubeTrailer(attrs.Get("youtubeVideoId").String())

	for _, path := range []string{"canonicalTitle", "titles.en", "titles.en_jp", "titles.ja_jp"} {
		if t := strings.TrimSpace(attrs.Get(path).String()); t != "" {
			rec.AltNames = append(rec.AltNames, t)
		}
	}
	return rec
}

func kitsuShowType(s string) string {
	switch strings.ToLower(s) {
	case "":
		return ""
	case "tv", "ova", "ona":
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func kitsuAgeRating(attrs gjson.Result) string {
	rating := attrs.Get("ageRating").String()
	guide := attrs.Get("ageRatingGuide").String()
	switch {
	case rating == "":
		return ""
	case guide == "":
		return rating
	}
	return rating + " - " + guide
}
