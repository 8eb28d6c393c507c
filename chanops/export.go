package chanops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/marovik/scribe/emoji"
	"github.com/marovik/scribe/telemetry"
)

// BundleHeader leads the bundle document.
type BundleHeader struct {
	ChannelName string `json:"chn_name"`
	ChannelID   string `json:"chn_id"`
}

// BundleRecord is one exported record. Images hold paths relative to the
// data directory so the document and its attachment directory move as one
// unit.
type BundleRecord struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
	Embeds  []string `json:"embeds"`
}

// ExportResult reports what Export wrote.
type ExportResult struct {
	Name      string `json:"name"`
	Document  string `json:"document"`
	Records   int    `json:"records"`
	Files     int    `json:"files"`
	Encrypted bool   `json:"encrypted"`
}

// Export walks the channel oldest first and writes a bundle: one JSON
// document plus a sibling directory of attachment files named
// <record-index>-<attachment-index>.png. Content is stored deemojified and
// embeds as bare descriptions. An empty name defaults to
// "<channel name>-<day>.<month>". When a bundle key is configured the
// document is encrypted and written with a .json.enc suffix.
func (e *Engine) Export(ctx context.Context, channelID, name string) (ExportResult, error) {
	start := time.Now()
	logger := slog.With(slog.String("op", "export"), slog.String("channel_id", channelID))

	ch, err := e.Log.Channel(ctx, channelID)
	if err != nil {
		return ExportResult{}, fmt.Errorf("resolve channel: %w", err)
	}
	if name == "" {
		now := time.Now()
		name = fmt.Sprintf("%s-%d.%d", ch.Name, now.Day(), int(now.Month()))
	}
	if !filepath.IsLocal(name) {
		return ExportResult{}, fmt.Errorf("bundle name %q escapes the data directory: %w", name, ErrInput)
	}

	records, err := e.collect(ctx, channelID)
	if err != nil {
		return ExportResult{}, fmt.Errorf("read channel: %w", err)
	}

	dir := filepath.Join(e.DataDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("create bundle directory: %w", err)
	}

	doc := make([]any, 0, len(records)+1)
	doc = append(doc, BundleHeader{ChannelName: ch.Name, ChannelID: ch.ID})
	files := 0
	for ri, r := range records {
		br := BundleRecord{
			Content: emoji.Deemojify(r.Content),
			Images:  []string{},
			Embeds:  []string{},
		}
		for _, em := range r.Embeds {
			br.Embeds = append(br.Embeds, em.Description)
		}
		for ai, att := range r.Attachments {
			data, err := e.Log.Attachment(ctx, att.URL)
			if err != nil {
				logger.Warn("attachment fetch failed, skipping file", slog.String("filename", att.Filename), slog.Any("err", err))
				continue
			}
			fn := fmt.Sprintf("%d-%d.png", ri, ai)
			if err := os.WriteFile(filepath.Join(dir, fn), data, 0o644); err != nil {
				logger.Warn("attachment write failed, skipping file", slog.String("filename", fn), slog.Any("err", err))
				continue
			}
			br.Images = append(br.Images, path.Join(name, fn))
			files++
		}
		doc = append(doc, br)
		telemetry.RecordsExported.Inc()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return ExportResult{}, fmt.Errorf("encode bundle document: %w", err)
	}

	data := buf.Bytes()
	docPath := filepath.Join(e.DataDir, name+".json")
	encrypted := false
	if e.BundleKey != nil {
		ct, err := e.BundleKey.Encrypt(data)
		if err != nil {
			return ExportResult{}, fmt.Errorf("encrypt bundle document: %w", err)
		}
		data = ct
		docPath += ".enc"
		encrypted = true
	}
	if err := os.WriteFile(docPath, data, 0o644); err != nil {
		return ExportResult{}, fmt.Errorf("write bundle document: %w", err)
	}

	res := ExportResult{Name: name, Document: docPath, Records: len(records), Files: files, Encrypted: encrypted}
	logger.Info("export complete", slog.String("bundle", name), slog.Int("records", res.Records), slog.Int("files", files), slog.Bool("encrypted", encrypted), slog.Duration("duration", time.Since(start)))
	return res, nil
}
