package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// Client reads item metadata from the catalog API with an app token.
type Client struct {
	Tokens     *TokenSource
	BaseURL    string
	Namespace  string
	Locale     string
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Token returns a valid app token. Enrichment calls this once up front so
// an auth problem aborts the whole operation instead of failing item by
// item.
func (c *Client) Token(ctx context.Context) (string, error) {
	return c.Tokens.Get(ctx)
}

// ItemName resolves an item id to its display name using a token obtained
// from Token.
func (c *Client) ItemName(ctx context.Context, token string, id int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/data/wow/item/%d", c.BaseURL, id), nil)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("namespace", c.Namespace)
	q.Set("locale", c.Locale)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("item %d not found in catalog", id)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("catalog item request failed: %s", resp.Status)
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Name == "" {
		return "", fmt.Errorf("item %d has no name for locale %s", id, c.Locale)
	}
	return body.Name, nil
}
