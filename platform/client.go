package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the platform REST API with a bot token. The zero value
// is not usable; construct with New.
type Client struct {
	BaseURL    string
	PublicURL  string
	Token      string
	HTTPClient *http.Client

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// New returns a Client with retry defaults. Trailing slashes on the URLs
// are tolerated.
func New(baseURL, publicURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		PublicURL:  strings.TrimRight(publicURL, "/"),
		Token:      token,
		MaxRetries: 3,
		BaseDelay:  250 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Message fetches a single record.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodGet, "/channels/"+channelID+"/messages/"+messageID, nil, nil, &rec); err != nil {
		return Record{}, err
	}
	c.decorate(&rec)
	return rec, nil
}

// Send creates a new record in the channel.
func (c *Client) Send(ctx context.Context, channelID string, out Outgoing) (Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodPost, "/channels/"+channelID+"/messages", nil, out, &rec); err != nil {
		return Record{}, err
	}
	c.decorate(&rec)
	return rec, nil
}

// Edit mutates an existing record. Nil Edit fields keep their current
// value on the platform side.
func (c *Client) Edit(ctx context.Context, channelID, messageID string, edit Edit) (Record, error) {
	var rec Record
	if err := c.doJSON(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, nil, edit, &rec); err != nil {
		return Record{}, err
	}
	c.decorate(&rec)
	return rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil, nil)
}

// Channel fetches channel metadata.
func (c *Client) Channel(ctx context.Context, channelID string) (Channel, error) {
	var ch Channel
	if err := c.doJSON(ctx, http.MethodGet, "/channels/"+channelID, nil, nil, &ch); err != nil {
		return Channel{}, err
	}
	return ch, nil
}

// DMChannel opens (or returns the existing) direct message channel with
// a user.
func (c *Client) DMChannel(ctx context.Context, userID string) (Channel, error) {
	var ch Channel
	if err := c.doJSON(ctx, http.MethodPost, "/users/"+userID+"/channels", nil, nil, &ch); err != nil {
		return Channel{}, err
	}
	return ch, nil
}

// Me returns the bot's own identity.
func (c *Client) Me(ctx context.Context) (Author, error) {
	var me Author
	if err := c.doJSON(ctx, http.MethodGet, "/me", nil, nil, &me); err != nil {
		return Author{}, err
	}
	return me, nil
}

// Attachment downloads an attachment body from the CDN. The URL comes
// from a Record and is fetched without the bot token.
func (c *Client) Attachment(ctx context.Context, fileURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http().Do(req)
		if err != nil {
			if attempt < c.MaxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}
		body, readErr := io.ReadAll(resp.Body)
		closeBody(resp)
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return body, nil
		}
		if retryableStatus(resp.StatusCode) && attempt < c.MaxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
		return nil, &APIError{Status: resp.StatusCode, Message: apiMessage(body)}
	}
}

// doJSON issues one API request, retrying 429 and 5xx responses with
// capped backoff and honoring Retry-After. A non-nil out receives the
// decoded response body.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var bodyBytes []byte
	if in != nil {
		var err error
		bodyBytes, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	for attempt := 0; ; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+c.Token)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http().Do(req)
		if err != nil {
			if attempt < c.MaxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		closeBody(resp)
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		if retryableStatus(resp.StatusCode) && attempt < c.MaxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return &APIError{Status: resp.StatusCode, Message: apiMessage(respBody)}
	}
}

func (c *Client) decorate(r *Record) {
	r.Link = BuildLink(c.PublicURL, r.GuildID, r.ChannelID, r.ID)
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.MaxDelay {
			return c.MaxDelay
		}
		return retryAfter
	}
	delay := c.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

func apiMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
