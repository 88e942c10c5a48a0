package metadata

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/logger"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

const DefaultShortenerURL = "https://freeimage.host/api/1/upload"

// Shortener rehosts an image URL. It never fails: on any error the original
// URL comes back.
type Shortener interface {
	Shorten(ctx context.Context, imageURL string) string
}

// NopShortener returns URLs unchanged.
type NopShortener struct{}

func (NopShortener) Shorten(_ context.Context, imageURL string) string { return imageURL }

// Image hosts whose URLs are already short.
var shortHosts = []string{"freeimage.host", "iili.io"}

// imageEndings are rewritten to webp, longest first.
var imageEndings = []string{"md.jpg", "md.png", "th.jpg", "th.png", "jpeg", "jpg", "png"}

// FreeImage uploads images to freeimage.host and returns the compact display URL.
type FreeImage struct {
	apiKey   string
	endpoint string
	client   *retryablehttp.Client
	log      logger.Logger
}

func NewFreeImage(apiKey, endpoint string, client *retryablehttp.Client, log logger.Logger) *FreeImage {
	if endpoint == "" {
		endpoint = DefaultShortenerURL
	}
	return &FreeImage{apiKey: apiKey, endpoint: endpoint, client: client, log: logger.OrNop(log)}
}

func (f *FreeImage) Shorten(ctx context.Context, imageURL string) string {
	if imageURL == "" || isShortHost(imageURL) {
		return imageURL
	}
	form := url.Values{}
	form.Set("key", f.apiKey)
	form.Set("action", "upload")
	form.Set("source", imageURL)
	form.Set("format", "json")

	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  http.MethodPost,
		URL:     f.endpoint,
		Headers: []whttp.WHTTPHeader{{Name: "Content-Type", Value: "application/x-www-form-urlencoded"}},
		Body:    []byte(form.Encode()),
	}, f.client)
	if err != nil {
		f.log.Debugf("Could not shorten %s: %v", imageURL, err)
		return imageURL
	}
	if !res.OK() {
		f.log.Debugf("Could not shorten %s: status %d", imageURL, res.StatusCode)
		return imageURL
	}
	display := gjson.Get(res.BodyString, "image.display_url").String()
	if display == "" {
		return imageURL
	}
	return CanonicalImageURL(display)
}

// CanonicalImageURL rewrites a known image ending to the compact webp form.
func CanonicalImageURL(u string) string {
	lower := strings.ToLower(u)
	if strings.HasSuffix(lower, ".webp") {
		return u
	}
	for _, ext := range imageEndings {
		if strings.HasSuffix(lower, ext) {
			return u[:len(u)-len(ext)] + "webp"
		}
	}
	return u
}

// isShortHost reports whether the URL already points at the image host.
func isShortHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	domain, err := publicsuffix.Domain(u.Hostname())
	if err != nil {
		return false
	}
	return slices.Contains(shortHosts, domain)
}
