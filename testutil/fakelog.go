package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marovik/scribe/platform"
)

// SendCall records one Send call with its resulting record.
type SendCall struct {
	ChannelID string
	Out       platform.Outgoing
	Rec       platform.Record
}

// EditCall records one Edit call.
type EditCall struct {
	ChannelID string
	MessageID string
	Edit      platform.Edit
}

// FakeLog is an in-memory channel log with the same surface the lifecycle
// operations consume from the platform client. Every mutating call is
// recorded for assertions, and per-id errors can be injected through the
// Fail maps.
type FakeLog struct {
	mu       sync.Mutex
	BotID    string
	LinkBase string
	nextID   int
	channels map[string]*fakeChannel
	files    map[string][]byte

	Sends   []SendCall
	Edits   []EditCall
	Deletes []string

	FailSend       map[string]error // channel id -> error
	FailEdit       map[string]error // message id -> error
	FailDelete     map[string]error // message id -> error
	FailMessage    map[string]error // message id -> error
	FailHistory    map[string]error // channel id -> error
	FailAttachment map[string]error // attachment url -> error
}

type fakeChannel struct {
	ch      platform.Channel
	records []platform.Record // oldest first
}

var fakeEpoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewFakeLog returns an empty log whose Send/Edit calls author records as
// botID.
func NewFakeLog(botID string) *FakeLog {
	return &FakeLog{
		BotID:          botID,
		LinkBase:       "https://chat.test",
		channels:       map[string]*fakeChannel{},
		files:          map[string][]byte{},
		FailSend:       map[string]error{},
		FailEdit:       map[string]error{},
		FailDelete:     map[string]error{},
		FailMessage:    map[string]error{},
		FailHistory:    map[string]error{},
		FailAttachment: map[string]error{},
	}
}

// AddChannel registers a channel.
func (f *FakeLog) AddChannel(id, name, guildID string) platform.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := platform.Channel{ID: id, Name: name, GuildID: guildID}
	f.channels[id] = &fakeChannel{ch: ch}
	return ch
}

// Seed appends a record without recording a send, for arranging channel
// state in tests.
func (f *FakeLog) Seed(channelID string, author platform.Author, content string, atts []platform.Attachment, embeds []platform.Embed) platform.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := f.channels[channelID]
	if ch == nil {
		panic("testutil: seed into unknown channel " + channelID)
	}
	f.nextID++
	rec := platform.Record{
		ID:          fmt.Sprintf("m%d", f.nextID),
		ChannelID:   channelID,
		GuildID:     ch.ch.GuildID,
		Author:      author,
		Content:     content,
		Attachments: append([]platform.Attachment(nil), atts...),
		Embeds:      append([]platform.Embed(nil), embeds...),
		Timestamp:   fakeEpoch.Add(time.Duration(f.nextID) * time.Second),
	}
	f.decorate(&rec)
	ch.records = append(ch.records, rec)
	return cloneRecord(rec)
}

// SeedBot appends a service-authored record.
func (f *FakeLog) SeedBot(channelID, content string) platform.Record {
	return f.Seed(channelID, platform.Author{ID: f.BotID, Name: "scribe", Bot: true}, content, nil, nil)
}

// SeedUser appends a foreign-authored record.
func (f *FakeLog) SeedUser(channelID, userID, content string) platform.Record {
	return f.Seed(channelID, platform.Author{ID: userID, Name: "user-" + userID}, content, nil, nil)
}

// SeedAttachment registers hosted bytes and returns an attachment pointing
// at them, for use with Seed.
func (f *FakeLog) SeedAttachment(filename string, data []byte) platform.Attachment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	url := fmt.Sprintf("%s/files/%d/%s", f.LinkBase, f.nextID, filename)
	f.files[url] = append([]byte(nil), data...)
	return platform.Attachment{ID: fmt.Sprintf("a%d", f.nextID), Filename: filename, URL: url}
}

func (f *FakeLog) History(channelID string, oldestFirst bool) platform.Iterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailHistory[channelID]; ok {
		return &sliceIter{err: err}
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return &sliceIter{err: notFound("unknown channel")}
	}
	recs := make([]platform.Record, len(ch.records))
	copy(recs, ch.records)
	if !oldestFirst {
		for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
			recs[i], recs[j] = recs[j], recs[i]
		}
	}
	return &sliceIter{recs: recs, i: -1}
}

func (f *FakeLog) Message(ctx context.Context, channelID, messageID string) (platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailMessage[messageID]; ok {
		return platform.Record{}, err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Record{}, notFound("unknown channel")
	}
	for _, r := range ch.records {
		if r.ID == messageID {
			return cloneRecord(r), nil
		}
	}
	return platform.Record{}, notFound("unknown message")
}

func (f *FakeLog) Send(ctx context.Context, channelID string, out platform.Outgoing) (platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailSend[channelID]; ok {
		return platform.Record{}, err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Record{}, notFound("unknown channel")
	}
	f.nextID++
	rec := platform.Record{
		ID:        fmt.Sprintf("m%d", f.nextID),
		ChannelID: channelID,
		GuildID:   ch.ch.GuildID,
		Author:    platform.Author{ID: f.BotID, Name: "scribe", Bot: true},
		Content:   out.Content,
		Embeds:    append([]platform.Embed(nil), out.Embeds...),
		Timestamp: fakeEpoch.Add(time.Duration(f.nextID) * time.Second),
	}
	for i, file := range out.Files {
		url := fmt.Sprintf("%s/files/%s/%s", f.LinkBase, rec.ID, file.Filename)
		f.files[url] = append([]byte(nil), file.Data...)
		rec.Attachments = append(rec.Attachments, platform.Attachment{
			ID:       fmt.Sprintf("a%s-%d", rec.ID, i),
			Filename: file.Filename,
			URL:      url,
		})
	}
	f.decorate(&rec)
	ch.records = append(ch.records, rec)
	f.Sends = append(f.Sends, SendCall{ChannelID: channelID, Out: out, Rec: cloneRecord(rec)})
	return cloneRecord(rec), nil
}

func (f *FakeLog) Edit(ctx context.Context, channelID, messageID string, edit platform.Edit) (platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailEdit[messageID]; ok {
		return platform.Record{}, err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Record{}, notFound("unknown channel")
	}
	for i := range ch.records {
		if ch.records[i].ID != messageID {
			continue
		}
		r := &ch.records[i]
		if edit.Content != nil {
			r.Content = *edit.Content
		}
		if edit.Attachments != nil {
			r.Attachments = nil
			for j, file := range *edit.Attachments {
				f.nextID++
				url := fmt.Sprintf("%s/files/e%d/%s", f.LinkBase, f.nextID, file.Filename)
				f.files[url] = append([]byte(nil), file.Data...)
				r.Attachments = append(r.Attachments, platform.Attachment{
					ID:       fmt.Sprintf("a%s-%d", r.ID, j),
					Filename: file.Filename,
					URL:      url,
				})
			}
		}
		if edit.Embeds != nil {
			r.Embeds = append([]platform.Embed(nil), (*edit.Embeds)...)
		}
		f.Edits = append(f.Edits, EditCall{ChannelID: channelID, MessageID: messageID, Edit: edit})
		return cloneRecord(*r), nil
	}
	return platform.Record{}, notFound("unknown message")
}

func (f *FakeLog) Delete(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailDelete[messageID]; ok {
		return err
	}
	ch, ok := f.channels[channelID]
	if !ok {
		return notFound("unknown channel")
	}
	for i := range ch.records {
		if ch.records[i].ID == messageID {
			ch.records = append(ch.records[:i], ch.records[i+1:]...)
			f.Deletes = append(f.Deletes, messageID)
			return nil
		}
	}
	return notFound("unknown message")
}

func (f *FakeLog) Channel(ctx context.Context, channelID string) (platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return platform.Channel{}, notFound("unknown channel")
	}
	return ch.ch, nil
}

func (f *FakeLog) DMChannel(ctx context.Context, userID string) (platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "dm-" + userID
	if ch, ok := f.channels[id]; ok {
		return ch.ch, nil
	}
	ch := platform.Channel{ID: id, Name: id}
	f.channels[id] = &fakeChannel{ch: ch}
	return ch, nil
}

func (f *FakeLog) Attachment(ctx context.Context, fileURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.FailAttachment[fileURL]; ok {
		return nil, err
	}
	data, ok := f.files[fileURL]
	if !ok {
		return nil, notFound("unknown attachment")
	}
	return append([]byte(nil), data...), nil
}

// Records returns a copy of the channel's records oldest first.
func (f *FakeLog) Records(channelID string) []platform.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil
	}
	out := make([]platform.Record, 0, len(ch.records))
	for _, r := range ch.records {
		out = append(out, cloneRecord(r))
	}
	return out
}

// Contents returns the channel's record contents oldest first.
func (f *FakeLog) Contents(channelID string) []string {
	var out []string
	for _, r := range f.Records(channelID) {
		out = append(out, r.Content)
	}
	return out
}

// SendCalls returns a copy of the recorded sends. Safe to call while an
// operation is still running on another goroutine.
func (f *FakeLog) SendCalls() []SendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SendCall(nil), f.Sends...)
}

// FileBytes returns the hosted bytes behind an attachment URL, or nil.
func (f *FakeLog) FileBytes(url string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[url]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

func (f *FakeLog) decorate(r *platform.Record) {
	guild := r.GuildID
	if guild == "" {
		guild = "@me"
	}
	r.Link = fmt.Sprintf("%s/channels/%s/%s/%s", f.LinkBase, guild, r.ChannelID, r.ID)
}

func cloneRecord(r platform.Record) platform.Record {
	r.Attachments = append([]platform.Attachment(nil), r.Attachments...)
	r.Embeds = append([]platform.Embed(nil), r.Embeds...)
	return r
}

func notFound(msg string) error {
	return &platform.APIError{Status: 404, Message: msg}
}

type sliceIter struct {
	recs []platform.Record
	i    int
	err  error
}

func (s *sliceIter) Next(ctx context.Context) bool {
	if s.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	if s.i+1 >= len(s.recs) {
		return false
	}
	s.i++
	return true
}

func (s *sliceIter) Record() platform.Record {
	return cloneRecord(s.recs[s.i])
}

func (s *sliceIter) Err() error {
	return s.err
}
