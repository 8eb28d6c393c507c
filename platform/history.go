package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const defaultPageSize = 100

// Iterator yields channel records one at a time. *History satisfies it;
// tests substitute in-memory implementations.
type Iterator interface {
	Next(ctx context.Context) bool
	Record() Record
	Err() error
}

// History iterates a channel's records page by page, in the order the
// wire API was asked for. Use it like sql.Rows:
//
//	h := client.History(channelID, true)
//	for h.Next(ctx) {
//		rec := h.Record()
//	}
//	if err := h.Err(); err != nil { ... }
type History struct {
	client    *Client
	channelID string
	order     string
	pageSize  int

	cursor string
	buf    []Record
	idx    int
	done   bool
	err    error
}

// History returns an iterator over the channel's records. oldestFirst
// selects ascending timestamp order, otherwise newest records come first.
func (c *Client) History(channelID string, oldestFirst bool) *History {
	order := "desc"
	if oldestFirst {
		order = "asc"
	}
	return &History{
		client:    c,
		channelID: channelID,
		order:     order,
		pageSize:  defaultPageSize,
	}
}

// Next advances to the following record, fetching the next page when the
// buffered one is exhausted. It returns false at the end of the channel
// or on error.
func (h *History) Next(ctx context.Context) bool {
	if h.err != nil {
		return false
	}
	if h.idx+1 < len(h.buf) {
		h.idx++
		return true
	}
	for !h.done {
		if err := h.fetchPage(ctx); err != nil {
			h.err = err
			return false
		}
		if len(h.buf) > 0 {
			h.idx = 0
			return true
		}
	}
	return false
}

// Record returns the current record. Only valid after Next returned true.
func (h *History) Record() Record {
	return h.buf[h.idx]
}

// Err returns the first error encountered while iterating.
func (h *History) Err() error {
	return h.err
}

// Collect drains the iterator into a slice.
func (h *History) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	for h.Next(ctx) {
		out = append(out, h.Record())
	}
	return out, h.Err()
}

func (h *History) fetchPage(ctx context.Context) error {
	q := url.Values{}
	q.Set("order", h.order)
	q.Set("limit", strconv.Itoa(h.pageSize))
	if h.cursor != "" {
		q.Set("cursor", h.cursor)
	}
	var body struct {
		Data       []Record `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
	}
	if err := h.client.doJSON(ctx, http.MethodGet, "/channels/"+h.channelID+"/messages", q, nil, &body); err != nil {
		return err
	}
	for i := range body.Data {
		h.client.decorate(&body.Data[i])
	}
	h.buf = body.Data
	h.cursor = body.Pagination.Cursor
	if h.cursor == "" {
		h.done = true
	}
	return nil
}
