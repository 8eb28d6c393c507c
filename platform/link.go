package platform

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrBadLink reports that a string is not a record jump link.
var ErrBadLink = errors.New("not a record link")

// LinkRef is a parsed jump link.
type LinkRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// BuildLink returns the public jump link for a record. DM records carry
// no guild and use the @me segment.
func BuildLink(publicBase, guildID, channelID, messageID string) string {
	if publicBase == "" {
		return ""
	}
	if guildID == "" {
		guildID = "@me"
	}
	return fmt.Sprintf("%s/channels/%s/%s/%s", strings.TrimRight(publicBase, "/"), guildID, channelID, messageID)
}

// ParseLink extracts the ids from a jump link. The host is not checked,
// links copied from any mirror of the platform resolve the same way, but
// the path must have the /channels/{guild}/{channel}/{message} shape.
func ParseLink(raw string) (LinkRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return LinkRef{}, fmt.Errorf("%w: %v", ErrBadLink, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return LinkRef{}, fmt.Errorf("%w: scheme %q", ErrBadLink, u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 4 || parts[0] != "channels" {
		return LinkRef{}, fmt.Errorf("%w: path %q", ErrBadLink, u.Path)
	}
	ref := LinkRef{GuildID: parts[1], ChannelID: parts[2], MessageID: parts[3]}
	if ref.GuildID == "" || ref.ChannelID == "" || ref.MessageID == "" {
		return LinkRef{}, fmt.Errorf("%w: path %q", ErrBadLink, u.Path)
	}
	return ref, nil
}
