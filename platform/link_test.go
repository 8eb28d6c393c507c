package platform

import (
	"errors"
	"testing"
)

func TestBuildLink(t *testing.T) {
	tests := []struct {
		name      string
		base      string
		guildID   string
		channelID string
		messageID string
		want      string
	}{
		{
			name:      "guild record",
			base:      "https://chat.example.com",
			guildID:   "g1",
			channelID: "c1",
			messageID: "m1",
			want:      "https://chat.example.com/channels/g1/c1/m1",
		},
		{
			name:      "trailing slash on base",
			base:      "https://chat.example.com/",
			guildID:   "g1",
			channelID: "c1",
			messageID: "m1",
			want:      "https://chat.example.com/channels/g1/c1/m1",
		},
		{
			name:      "dm record uses @me",
			base:      "https://chat.example.com",
			guildID:   "",
			channelID: "dm1",
			messageID: "m1",
			want:      "https://chat.example.com/channels/@me/dm1/m1",
		},
		{
			name:      "no public base configured",
			base:      "",
			guildID:   "g1",
			channelID: "c1",
			messageID: "m1",
			want:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildLink(tt.base, tt.guildID, tt.channelID, tt.messageID); got != tt.want {
				t.Errorf("BuildLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    LinkRef
		wantErr bool
	}{
		{
			name: "canonical link",
			raw:  "https://chat.example.com/channels/g1/c1/m1",
			want: LinkRef{GuildID: "g1", ChannelID: "c1", MessageID: "m1"},
		},
		{
			name: "other host accepted",
			raw:  "https://mirror.example.net/channels/g1/c1/m1",
			want: LinkRef{GuildID: "g1", ChannelID: "c1", MessageID: "m1"},
		},
		{
			name: "surrounding whitespace",
			raw:  "  https://chat.example.com/channels/g1/c1/m1  ",
			want: LinkRef{GuildID: "g1", ChannelID: "c1", MessageID: "m1"},
		},
		{
			name: "dm link",
			raw:  "https://chat.example.com/channels/@me/dm1/m1",
			want: LinkRef{GuildID: "@me", ChannelID: "dm1", MessageID: "m1"},
		},
		{
			name:    "wrong path shape",
			raw:     "https://chat.example.com/users/u1",
			wantErr: true,
		},
		{
			name:    "missing message segment",
			raw:     "https://chat.example.com/channels/g1/c1",
			wantErr: true,
		},
		{
			name:    "extra segment",
			raw:     "https://chat.example.com/channels/g1/c1/m1/extra",
			wantErr: true,
		},
		{
			name:    "non http scheme",
			raw:     "ftp://chat.example.com/channels/g1/c1/m1",
			wantErr: true,
		},
		{
			name:    "not a url at all",
			raw:     "just some words",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLink(%q) error = nil, want error", tt.raw)
				}
				if !errors.Is(err, ErrBadLink) {
					t.Errorf("ParseLink(%q) error = %v, want ErrBadLink", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLink(%q) error = %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseLink(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	link := BuildLink("https://chat.example.com", "g9", "c9", "m9")
	ref, err := ParseLink(link)
	if err != nil {
		t.Fatalf("ParseLink(BuildLink()) error = %v", err)
	}
	if ref.GuildID != "g9" || ref.ChannelID != "c9" || ref.MessageID != "m9" {
		t.Errorf("round trip = %+v", ref)
	}
}
