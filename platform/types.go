// Package platform is the client for the chat platform the service curates
// channels on. It covers the REST surface (records, channels, attachments)
// and the realtime gateway socket used for reply prompts and triggers.
package platform

import "time"

// Author identifies who wrote a record.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"username"`
	Bot  bool   `json:"bot,omitempty"`
}

// Attachment is a file hosted on the platform CDN.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Embed is the rich content box rendered under a record.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Record is one message in a channel. Link is synthesized client side from
// the public URL and is never sent over the wire.
type Record struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id,omitempty"`
	Author      Author       `json:"author"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Embeds      []Embed      `json:"embeds,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Link        string       `json:"-"`
}

// Channel describes a platform channel.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	GuildID string `json:"guild_id,omitempty"`
}

// FilePayload is a file body to upload alongside a record. Data is
// base64 encoded on the wire by encoding/json.
type FilePayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// Outgoing is a new record to create.
type Outgoing struct {
	Content        string        `json:"content,omitempty"`
	Files          []FilePayload `json:"files,omitempty"`
	Embeds         []Embed       `json:"embeds,omitempty"`
	SuppressEmbeds bool          `json:"suppress_embeds,omitempty"`
	ReplyTo        string        `json:"reply_to,omitempty"`
}

// Edit mutates an existing record. A nil field keeps the current value,
// a non-nil empty slice clears it.
type Edit struct {
	Content        *string        `json:"content,omitempty"`
	Attachments    *[]FilePayload `json:"attachments,omitempty"`
	Embeds         *[]Embed       `json:"embeds,omitempty"`
	SuppressEmbeds *bool          `json:"suppress_embeds,omitempty"`
}

// StringPtr is a convenience for building Edit values.
func StringPtr(s string) *string { return &s }

// BoolPtr is a convenience for building Edit values.
func BoolPtr(b bool) *bool { return &b }
