// Package trigger implements pattern-triggered auto replies. Operators
// register regex patterns per channel, optionally anchored to a record
// jump link, and the gateway listener answers the first registered
// trigger whose pattern matches an incoming message.
package trigger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/marovik/scribe/platform"
)

// ErrInvalid tags registration failures caused by the request itself: no
// usable pattern, a pattern that does not compile, a dead record link.
var ErrInvalid = errors.New("invalid trigger")

// Trigger is one registered auto reply. Patterns holds the storage form,
// individual regexes joined with commas.
type Trigger struct {
	ID          int64     `json:"id"`
	ChannelID   string    `json:"channel_id"`
	GuildID     string    `json:"guild_id,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	MessageLink string    `json:"message_link,omitempty"`
	Patterns    string    `json:"patterns"`
	Response    string    `json:"response,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Match reports whether any of the trigger's patterns matches content.
// Matching is a case-insensitive substring search. A stored pattern that
// no longer compiles is skipped rather than taking the listener down.
func (t Trigger) Match(content string) bool {
	for _, p := range strings.Split(t.Patterns, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

// ReplyText builds the reply for a matched trigger. A literal <> in the
// response text is replaced with the record link; otherwise the link goes
// on its own line after the text.
func (t Trigger) ReplyText() string {
	switch {
	case t.MessageLink == "":
		return t.Response
	case t.Response == "":
		return t.MessageLink
	case strings.Contains(t.Response, "<>"):
		return strings.ReplaceAll(t.Response, "<>", t.MessageLink)
	default:
		return t.Response + "\n" + t.MessageLink
	}
}

// FirstMatch returns the reply of the first trigger matching content, in
// registration order. At most one trigger answers a message.
func FirstMatch(triggers []Trigger, content string) (string, bool) {
	for _, t := range triggers {
		if t.Match(content) {
			return t.ReplyText(), true
		}
	}
	return "", false
}

// NormalizePatterns trims the given patterns, drops empty entries and
// verifies each remaining one compiles case-insensitively. It returns the
// comma-joined storage form. Commas inside a pattern are rejected because
// the comma separates stored patterns; spell quantifiers like {1,3} as an
// explicit alternation instead.
func NormalizePatterns(patterns []string) (string, error) {
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, ",") {
			return "", fmt.Errorf("pattern %q contains a comma: %w", p, ErrInvalid)
		}
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return "", fmt.Errorf("pattern %q does not compile: %v: %w", p, err, ErrInvalid)
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("at least one pattern is required: %w", ErrInvalid)
	}
	return strings.Join(kept, ","), nil
}

// CreateRequest is the registration payload.
type CreateRequest struct {
	Patterns    []string `json:"patterns"`
	MessageLink string   `json:"message_link,omitempty"`
	Response    string   `json:"response,omitempty"`
	CreatedBy   string   `json:"created_by,omitempty"`
}

// RecordChecker verifies that a linked record is reachable.
// *platform.Client satisfies it.
type RecordChecker interface {
	Message(ctx context.Context, channelID, messageID string) (platform.Record, error)
}

// Create validates and stores a trigger. A message link is parsed and the
// record it points at fetched, so registration against a dead link is
// refused up front. Registering a second trigger for the same channel and
// record replaces the first.
func Create(ctx context.Context, dbx *sql.DB, check RecordChecker, channelID string, req CreateRequest) (Trigger, error) {
	patterns, err := NormalizePatterns(req.Patterns)
	if err != nil {
		return Trigger{}, err
	}
	if req.Response == "" && req.MessageLink == "" {
		return Trigger{}, fmt.Errorf("a trigger needs response text or a message link: %w", ErrInvalid)
	}

	t := Trigger{
		ChannelID: channelID,
		Patterns:  patterns,
		Response:  req.Response,
		CreatedBy: req.CreatedBy,
	}
	if req.MessageLink != "" {
		ref, err := platform.ParseLink(req.MessageLink)
		if err != nil {
			return Trigger{}, fmt.Errorf("%v: %w", err, ErrInvalid)
		}
		if _, err := check.Message(ctx, ref.ChannelID, ref.MessageID); err != nil {
			if errors.Is(err, platform.ErrNotFound) || errors.Is(err, platform.ErrForbidden) {
				return Trigger{}, fmt.Errorf("linked record unreachable: %v: %w", err, ErrInvalid)
			}
			return Trigger{}, fmt.Errorf("verify linked record: %w", err)
		}
		t.MessageLink = req.MessageLink
		t.MessageID = ref.MessageID
		if ref.GuildID != "@me" {
			t.GuildID = ref.GuildID
		}
		if _, err := dbx.ExecContext(ctx,
			`DELETE FROM triggers WHERE channel_id = $1 AND message_id = $2`,
			channelID, t.MessageID); err != nil {
			return Trigger{}, fmt.Errorf("replace trigger: %w", err)
		}
	}

	row := dbx.QueryRowContext(ctx,
		`INSERT INTO triggers (channel_id, guild_id, message_id, message_link, patterns, response_text, created_by)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7)
		 RETURNING id, created_at`,
		channelID, t.GuildID, t.MessageID, t.MessageLink, t.Patterns, t.Response, t.CreatedBy)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Trigger{}, fmt.Errorf("insert trigger: %w", err)
	}
	return t, nil
}

// List returns the channel's triggers, oldest registration first.
func List(ctx context.Context, dbx *sql.DB, channelID string) ([]Trigger, error) {
	rows, err := dbx.QueryContext(ctx,
		`SELECT id, channel_id, guild_id, COALESCE(message_id, ''), COALESCE(message_link, ''),
		        patterns, COALESCE(response_text, ''), created_by, created_at
		 FROM triggers WHERE channel_id = $1 ORDER BY id`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var t Trigger
		if err := rows.Scan(&t.ID, &t.ChannelID, &t.GuildID, &t.MessageID, &t.MessageLink,
			&t.Patterns, &t.Response, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a trigger by id and reports whether a row existed.
func Delete(ctx context.Context, dbx *sql.DB, channelID string, id int64) (bool, error) {
	res, err := dbx.ExecContext(ctx,
		`DELETE FROM triggers WHERE channel_id = $1 AND id = $2`, channelID, id)
	if err != nil {
		return false, fmt.Errorf("delete trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
