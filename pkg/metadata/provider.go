// Package metadata looks entries up on external metadata services and merges
// their partial answers field by field.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
)

var (
	// ErrNoMatch means the provider answered but found nothing for the name.
	ErrNoMatch = errors.New("no match")
	// ErrProviderUnavailable wraps transport failures, timeouts and bad responses.
	ErrProviderUnavailable = errors.New("metadata provider unavailable")
)

// Provider names.
const (
	Jikan   = "jikan"
	Kitsu   = "kitsu"
	AniList = "anilist"
	TMDB    = "tmdb"
)

// Query is a single lookup request.
type Query struct {
	Name string
	// AltNames are tried, in order, by providers that support fuzzy title search.
	AltNames []string
	// Related asks for related and similar entries, which cost extra calls.
	Related bool
}

// Record is one provider's partial answer. Empty strings and unknown values
// mean the provider has nothing for that field.
type Record struct {
	Source string

	JapaneseName string
	Poster       string
	Banner       string
	Trailer      string
	Synopsis     string
	Genre        string
	Related      catalog.Names
	Similar      string

	Type      string
	Status    string
	Airing    *bool
	Episodes  catalog.Count
	PGRating  string
	Studio    string
	Producers string

	Rating catalog.Rating
	Votes  catalog.Count

	// AltNames are other titles the provider knows the entry by.
	AltNames []string
}

// Provider looks up an entry by name.
type Provider interface {
	Name() string
	// Lookup returns ErrNoMatch when nothing matches the name and an error
	// wrapping ErrProviderUnavailable when the service could not be reached.
	Lookup(ctx context.Context, q Query) (Record, error)
}

// apiClient is the shared HTTP plumbing of the providers.
type apiClient struct {
	name   string
	client *retryablehttp.Client
	pacer  *whttp.Pacer
}

func (c apiClient) do(ctx context.Context, req *whttp.WHTTPReq) (*whttp.WHTTPRes, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, c.name, err)
	}
	res, err := whttp.SendHTTPRequest(ctx, req, c.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, c.name, err)
	}
	return res, nil
}

// getJSON fetches a JSON document. 404 maps to ErrNoMatch.
func (c apiClient) getJSON(ctx context.Context, url string, headers ...whttp.WHTTPHeader) (string, error) {
	res, err := c.do(ctx, &whttp.WHTTPReq{Method: "GET", URL: url, Headers: headers})
	if err != nil {
		return "", err
	}
	return c.checkJSON(res)
}

func (c apiClient) checkJSON(res *whttp.WHTTPRes) (string, error) {
	switch {
	case res.StatusCode == http.StatusNotFound:
		return "", ErrNoMatch
	case !res.OK():
		return "", fmt.Errorf("%w: %s returned status %d", ErrProviderUnavailable, c.name, res.StatusCode)
	case !gjson.Valid(res.BodyString):
		return "", fmt.Errorf("%w: %s returned malformed JSON", ErrProviderUnavailable, c.name)
	}
	return res.BodyString, nil
}

// joinNames joins the "name" key of every element of arr.
func joinNames(arr gjson.Result, key string) string {
	var names []string
	arr.ForEach(func(_, v gjson.Result) bool {
		if n := strings.TrimSpace(v.Get(key).String()); n != "" {
			names = append(names, n)
		}
		return true
	})
	if len(names) == 0 {
		return ""
	}
	return catalog.JoinList(names)
}

func boolPtr(b bool) *bool { return &b }

// score10 rounds a 0-10 score to two decimals.
func score10(v float64) catalog.Rating {
	return catalog.KnownRating(math.Round(v*100) / 100)
}

// score100 converts a 0-100 score to the 0-10 scale.
func score100(v float64) catalog.Rating { return score10(v / 10) }

const youtubeEmbed = "https://www.youtube.com/embed/%s?enablejsapi=1&wmode=opaque&autoplay=1&loop=1"

// youtubeTrailer builds the embed URL and thumbnail banner for a video id.
func youtubeTrailer(videoID string) (trailer, banner string) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", ""
	}
	return fmt.Sprintf(youtubeEmbed, videoID), "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
}
