package chanops

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/marovik/scribe/platform"
	"github.com/marovik/scribe/telemetry"
)

//go:embed bundle_schema.json
var bundleSchemaText string

var (
	bundleSchemaOnce sync.Once
	bundleSchema     *jsonschema.Schema
	bundleSchemaErr  error
)

func compiledBundleSchema() (*jsonschema.Schema, error) {
	bundleSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(bundleSchemaText))
		if err != nil {
			bundleSchemaErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("bundle.json", doc); err != nil {
			bundleSchemaErr = err
			return
		}
		bundleSchema, bundleSchemaErr = c.Compile("bundle.json")
	})
	return bundleSchema, bundleSchemaErr
}

func validateBundle(data []byte) error {
	sch, err := compiledBundleSchema()
	if err != nil {
		return fmt.Errorf("compile bundle schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	return sch.Validate(inst)
}

// Import replays a bundle into the channel, appending one record per bundle
// entry oldest first: content is emojified, attachment files are read from
// the data directory and re-uploaded, embeds come back as description-only.
// The document is validated against the bundle schema before anything is
// sent; malformed input aborts with no side effects. Append-only, so the
// channel's pre-existing records are untouched. Returns the number of
// records sent.
func (e *Engine) Import(ctx context.Context, channelID, name string) (int, error) {
	start := time.Now()
	logger := slog.With(slog.String("op", "import"), slog.String("channel_id", channelID), slog.String("bundle", name))
	if name == "" || !filepath.IsLocal(name) {
		return 0, fmt.Errorf("bad bundle name %q: %w", name, ErrInput)
	}

	data, err := e.readBundleDoc(name)
	if err != nil {
		return 0, err
	}
	if err := validateBundle(data); err != nil {
		return 0, fmt.Errorf("bundle %s failed validation: %v: %w", name, err, ErrInput)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("bundle %s: %v: %w", name, err, ErrInput)
	}

	sent := 0
	for _, raw := range entries[1:] {
		var br BundleRecord
		if err := json.Unmarshal(raw, &br); err != nil {
			return sent, fmt.Errorf("bundle %s record %d: %v: %w", name, sent, err, ErrInput)
		}
		out := platform.Outgoing{Content: e.emojify(br.Content)}
		for _, img := range br.Images {
			rel := filepath.FromSlash(img)
			if !filepath.IsLocal(rel) {
				return sent, fmt.Errorf("bundle %s references file %q outside the data directory: %w", name, img, ErrInput)
			}
			b, err := os.ReadFile(filepath.Join(e.DataDir, rel))
			if err != nil {
				return sent, fmt.Errorf("bundle %s file %s: %v: %w", name, img, err, ErrInput)
			}
			out.Files = append(out.Files, platform.FilePayload{Filename: path.Base(img), Data: b})
		}
		for _, d := range br.Embeds {
			out.Embeds = append(out.Embeds, platform.Embed{Description: d})
		}
		if _, err := e.Log.Send(ctx, channelID, out); err != nil {
			return sent, fmt.Errorf("send record %d: %w", sent, err)
		}
		sent++
		telemetry.RecordsImported.Inc()
	}
	logger.Info("import complete", slog.Int("records", sent), slog.Duration("duration", time.Since(start)))
	return sent, nil
}

// readBundleDoc loads the bundle document, falling back to the encrypted
// variant when the plain one is absent.
func (e *Engine) readBundleDoc(name string) ([]byte, error) {
	docPath := filepath.Join(e.DataDir, name+".json")
	data, err := os.ReadFile(docPath)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read bundle document: %w", err)
	}

	enc, encErr := os.ReadFile(docPath + ".enc")
	if errors.Is(encErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("bundle %s not found under %s: %w", name, e.DataDir, ErrInput)
	}
	if encErr != nil {
		return nil, fmt.Errorf("read bundle document: %w", encErr)
	}
	if e.BundleKey == nil {
		return nil, fmt.Errorf("bundle %s is encrypted and no bundle key is configured: %w", name, ErrInput)
	}
	data, err = e.BundleKey.Decrypt(enc)
	if err != nil {
		return nil, fmt.Errorf("decrypt bundle %s: %w", name, err)
	}
	return data, nil
}
