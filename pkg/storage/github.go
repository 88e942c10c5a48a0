package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/whttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const defaultGitHubAPI = "https://api.github.com"

// GitHubConfig locates the catalog file in a repository.
type GitHubConfig struct {
	Owner   string
	Repo    string
	Path    string
	Token   string
	Branch  string
	Message string
	BaseURL string
}

// GitHubStore keeps the catalog as a JSON file in a GitHub repository. The
// file's blob sha is the version.
type GitHubStore struct {
	cfg    GitHubConfig
	client *retryablehttp.Client
	writer *retryablehttp.Client
}

// NewGitHubStore builds a store. Reads go through client; writes are sent once,
// never retried.
func NewGitHubStore(cfg GitHubConfig, client *retryablehttp.Client) (*GitHubStore, error) {
	if cfg.Owner == "" || cfg.Repo == "" || cfg.Path == "" {
		return nil, fmt.Errorf("github store needs owner, repo and path")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Message == "" {
		cfg.Message = "Update catalog"
	}

	writer := retryablehttp.NewClient()
	writer.HTTPClient = client.HTTPClient
	writer.Logger = client.Logger
	writer.RetryMax = 0
	writer.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &GitHubStore{cfg: cfg, client: client, writer: writer}, nil
}

func (g *GitHubStore) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.cfg.BaseURL,
		url.PathEscape(g.cfg.Owner), url.PathEscape(g.cfg.Repo), strings.TrimLeft(g.cfg.Path, "/"))
}

func (g *GitHubStore) headers() []whttp.WHTTPHeader {
	h := []whttp.WHTTPHeader{
		{Name: "Accept", Value: "application/vnd.github+json"},
		{Name: "X-GitHub-Api-Version", Value: "2022-11-28"},
	}
	if g.cfg.Token != "" {
		h = append(h, whttp.WHTTPHeader{Name: "Authorization", Value: "Bearer " + g.cfg.Token})
	}
	return h
}

func (g *GitHubStore) Read(ctx context.Context) (catalog.Catalog, Version, error) {
	target := g.contentsURL()
	if g.cfg.Branch != "" {
		target += "?ref=" + url.QueryEscape(g.cfg.Branch)
	}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: target, Headers: g.headers()}, g.client)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if res.StatusCode == http.StatusNotFound {
		return catalog.Catalog{}, "", nil
	}
	if !res.OK() {
		return nil, "", fmt.Errorf("%w: contents returned status %d", ErrStoreUnavailable, res.StatusCode)
	}

	body := res.BodyString
	if !gjson.Valid(body) || !gjson.Parse(body).IsObject() {
		return nil, "", fmt.Errorf("%w: %s is not a file", ErrDecode, g.cfg.Path)
	}
	sha := gjson.Get(body, "sha").String()
	content := gjson.Get(body, "content").String()

	// Files over 1MB come back without inline content.
	if gjson.Get(body, "encoding").String() == "none" || (content == "" && gjson.Get(body, "size").Int() > 0) {
		content, err = g.readBlob(ctx, sha)
		if err != nil {
			return nil, "", err
		}
	}

	raw, err := decodeContent(content)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	c, err := catalog.Decode(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return c, Version(sha), nil
}

func (g *GitHubStore) readBlob(ctx context.Context, sha string) (string, error) {
	target := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s", g.cfg.BaseURL,
		url.PathEscape(g.cfg.Owner), url.PathEscape(g.cfg.Repo), url.PathEscape(sha))
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: target, Headers: g.headers()}, g.client)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !res.OK() {
		return "", fmt.Errorf("%w: blob returned status %d", ErrStoreUnavailable, res.StatusCode)
	}
	return gjson.Get(res.BodyString, "content").String(), nil
}

// decodeContent undoes GitHub's line-wrapped base64.
func decodeContent(content string) ([]byte, error) {
	content = strings.NewReplacer("\n", "", "\r", "").Replace(content)
	return base64.StdEncoding.DecodeString(content)
}

func (g *GitHubStore) Write(ctx context.Context, c catalog.Catalog, v Version) (Version, error) {
	doc, err := c.Encode()
	if err != nil {
		return "", err
	}

	payload := `{}`
	payload, _ = sjson.Set(payload, "message", g.cfg.Message)
	payload, _ = sjson.Set(payload, "content", base64.StdEncoding.EncodeToString(doc))
	if v != "" {
		payload, _ = sjson.Set(payload, "sha", string(v))
	}
	if g.cfg.Branch != "" {
		payload, _ = sjson.Set(payload, "branch", g.cfg.Branch)
	}

	headers := append(g.headers(), whttp.WHTTPHeader{Name: "Content-Type", Value: "application/json"})
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Method:  "PUT",
		URL:     g.contentsURL(),
		Headers: headers,
		Body:    []byte(payload),
	}, g.writer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch {
	case res.StatusCode == http.StatusConflict, res.StatusCode == http.StatusUnprocessableEntity:
		return "", ErrConflict
	case !res.OK():
		return "", fmt.Errorf("%w: update returned status %d: %s", ErrStoreUnavailable, res.StatusCode, gjson.Get(res.BodyString, "message").String())
	}
	return Version(gjson.Get(res.BodyString, "content.sha").String()), nil
}
