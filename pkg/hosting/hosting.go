// Package hosting lists the folders published on content-hosting providers.
package hosting

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
)

// ErrProviderUnavailable wraps any failure to obtain a usable listing.
var ErrProviderUnavailable = errors.New("hosting provider unavailable")

// Item is one listed folder in provider-neutral form.
type Item struct {
	Name       string
	LocationID string
}

// Lister abstracts a provider's folder listing.
type Lister interface {
	Name() string
	ListItems(ctx context.Context) ([]Item, error)
}

// Listing formats.
const (
	FormatXFS     = "xfs"
	FormatMixDrop = "mixdrop"
	FormatAniflix = "aniflix"
)

const defaultPageSize = 100

// Config describes one configured provider.
type Config struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Format   string `mapstructure:"format"`
	PageSize int    `mapstructure:"page_size"`
}

// Provider is a Lister backed by a JSON listing endpoint.
type Provider struct {
	cfg    Config
	client *retryablehttp.Client
	parse  func(body string) ([]Item, error)
}

// New builds a provider for the configured format.
func New(cfg Config, client *retryablehttp.Client) (*Provider, error) {
	if cfg.Name == "" || cfg.URL == "" {
		return nil, fmt.Errorf("hosting provider needs a name and url")
	}
	p := &Provider{cfg: cfg, client: client}
	switch strings.ToLower(cfg.Format) {
	case FormatXFS, "":
		p.parse = parseXFS
	case FormatMixDrop:
		p.parse = parseMixDrop
	case FormatAniflix:
		p.parse = parseAniflix
		if p.cfg.PageSize <= 0 {
			p.cfg.PageSize = defaultPageSize
		}
	default:
		return nil, fmt.Errorf("unknown listing format %q for %s", cfg.Format, cfg.Name)
	}
	return p, nil
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) ListItems(ctx context.Context) ([]Item, error) {
	if strings.EqualFold(p.cfg.Format, FormatAniflix) {
		return p.listPaged(ctx)
	}
	body, err := p.fetch(ctx, p.cfg.URL)
	if err != nil {
		return nil, err
	}
	return p.parse(body)
}

// listPaged walks page/page_size until a short page comes back.
func (p *Provider) listPaged(ctx context.Context) ([]Item, error) {
	var all []Item
	for page := 1; ; page++ {
		u, err := url.Parse(p.cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.cfg.Name, err)
		}
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(p.cfg.PageSize))
		u.RawQuery = q.Encode()

		body, err := p.fetch(ctx, u.String())
		if err != nil {
			return nil, err
		}
		items, err := p.parse(body)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < p.cfg.PageSize {
			return all, nil
		}
	}
}

func (p *Provider) fetch(ctx context.Context, target string) (string, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method: "GET",
		URL:    target,
	}, p.client)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, p.cfg.Name, err)
	}
	if !res.OK() {
		if res.HTTPTitle != "" {
			return "", fmt.Errorf("%w: %s: status %d (%s)", ErrProviderUnavailable, p.cfg.Name, res.StatusCode, res.HTTPTitle)
		}
		return "", fmt.Errorf("%w: %s: status %d", ErrProviderUnavailable, p.cfg.Name, res.StatusCode)
	}
	if !gjson.Valid(res.BodyString) {
		return "", fmt.Errorf("%w: %s: malformed listing", ErrProviderUnavailable, p.cfg.Name)
	}
	return res.BodyString, nil
}

func parseXFS(body string) ([]Item, error) {
	folders := gjson.Get(body, "result.folders")
	if !folders.IsArray() {
		return nil, fmt.Errorf("%w: missing result.folders", ErrProviderUnavailable)
	}
	return collect(folders, "name", "fld_id"), nil
}

func parseMixDrop(body string) ([]Item, error) {
	folders := gjson.Get(body, "result.folders")
	if !folders.IsArray() {
		return nil, fmt.Errorf("%w: missing result.folders", ErrProviderUnavailable)
	}
	return collect(folders, "title", "id"), nil
}

func parseAniflix(body string) ([]Item, error) {
	if !gjson.Get(body, "success").Bool() {
		return nil, fmt.Errorf("%w: listing reported failure", ErrProviderUnavailable)
	}
	folders := gjson.Get(body, "folders")
	if !folders.IsArray() {
		return nil, fmt.Errorf("%w: missing folders", ErrProviderUnavailable)
	}
	return collect(folders, "name", "folderId"), nil
}

// collect skips items without a name or id; ids may be strings or numbers.
func collect(folders gjson.Result, nameKey, idKey string) []Item {
	var items []Item
	folders.ForEach(func(_, folder gjson.Result) bool {
		name := catalog.UnescapeName(folder.Get(nameKey).String())
		id := strings.TrimSpace(folder.Get(idKey).String())
		if name != "" && id != "" {
			items = append(items, Item{Name: name, LocationID: id})
		}
		return true
	})
	return items
}
