package chanops

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeBundle(t *testing.T, dataDir, name, doc string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dataDir, name+".json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
}

func TestImportAppendsRecords(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()
	log.AddChannel("c2", "restore", "g1")
	existing := log.SeedBot("c2", "existing")

	if err := os.MkdirAll(filepath.Join(e.DataDir, "guide"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(e.DataDir, "guide", "0-0.png"), []byte{5}, 0o644); err != nil {
		t.Fatal(err)
	}
	writeBundle(t, e.DataDir, "guide", `[
    {"chn_name": "guides", "chn_id": "c1"},
    {"content": "hi :sealed:", "images": ["guide/0-0.png"], "embeds": ["about"]},
    {"content": "plain", "images": [], "embeds": []}
]`)

	n, err := e.Import(ctx, "c2", "guide")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Import() = %d, want 2", n)
	}

	recs := log.Records("c2")
	if len(recs) != 3 {
		t.Fatalf("channel has %d records, want 3", len(recs))
	}
	if recs[0].ID != existing.ID || recs[0].Content != "existing" {
		t.Error("pre-existing record should stay untouched")
	}
	if recs[1].Content != "hi "+sealedTag {
		t.Errorf("content = %q, want emojified text", recs[1].Content)
	}
	if len(recs[1].Attachments) != 1 || recs[1].Attachments[0].Filename != "0-0.png" {
		t.Fatalf("attachments = %+v, want the bundled file", recs[1].Attachments)
	}
	if b := log.FileBytes(recs[1].Attachments[0].URL); !bytes.Equal(b, []byte{5}) {
		t.Errorf("file bytes = %v, want [5]", b)
	}
	if len(recs[1].Embeds) != 1 || recs[1].Embeds[0].Description != "about" {
		t.Errorf("embeds = %+v, want one description", recs[1].Embeds)
	}
	if recs[2].Content != "plain" {
		t.Errorf("content = %q, want %q", recs[2].Content, "plain")
	}
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"not an array", `{"chn_name": "g", "chn_id": "c"}`},
		{"empty array", `[]`},
		{"header missing channel id", `[{"chn_name": "g"}]`},
		{"record missing content", `[{"chn_name": "g", "chn_id": "c"}, {"images": [], "embeds": []}]`},
		{"image not a string", `[{"chn_name": "g", "chn_id": "c"}, {"content": "x", "images": [3], "embeds": []}]`},
		{"stray field", `[{"chn_name": "g", "chn_id": "c"}, {"content": "x", "images": [], "embeds": [], "pinned": true}]`},
		{"truncated json", `[{"chn_name": "g"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, log := newTestEngine(t)
			writeBundle(t, e.DataDir, "bad", tc.doc)

			n, err := e.Import(context.Background(), "c1", "bad")
			if !errors.Is(err, ErrInput) {
				t.Fatalf("Import() error = %v, want ErrInput", err)
			}
			if n != 0 || len(log.Sends) != 0 {
				t.Errorf("Import() = %d with %d sends, want nothing sent", n, len(log.Sends))
			}
		})
	}
}

func TestImportMissingBundle(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Import(context.Background(), "c1", "nothing-here")
	if !errors.Is(err, ErrInput) {
		t.Fatalf("Import() error = %v, want ErrInput", err)
	}
}

func TestImportRejectsBadName(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, name := range []string{"", "../escape", "a/../../b"} {
		if _, err := e.Import(context.Background(), "c1", name); !errors.Is(err, ErrInput) {
			t.Errorf("Import(%q) error = %v, want ErrInput", name, err)
		}
	}
}

func TestImportTraversalImagePath(t *testing.T) {
	e, log := newTestEngine(t)
	writeBundle(t, e.DataDir, "sneaky", `[
    {"chn_name": "g", "chn_id": "c"},
    {"content": "x", "images": ["../../etc/passwd"], "embeds": []}
]`)

	n, err := e.Import(context.Background(), "c1", "sneaky")
	if !errors.Is(err, ErrInput) {
		t.Fatalf("Import() error = %v, want ErrInput", err)
	}
	if n != 0 || len(log.Sends) != 0 {
		t.Errorf("Import() = %d with %d sends, want nothing sent", n, len(log.Sends))
	}
}

func TestImportMissingImageFile(t *testing.T) {
	e, _ := newTestEngine(t)
	writeBundle(t, e.DataDir, "partial", `[
    {"chn_name": "g", "chn_id": "c"},
    {"content": "x", "images": ["partial/9-9.png"], "embeds": []}
]`)

	if _, err := e.Import(context.Background(), "c1", "partial"); !errors.Is(err, ErrInput) {
		t.Fatalf("Import() error = %v, want ErrInput", err)
	}
}

func TestImportEncryptedBundle(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()
	log.AddChannel("c2", "restore", "g1")
	e.BundleKey = newTestKey(t)

	log.SeedBot("c1", "sealed away")
	if _, err := e.Export(ctx, "c1", "vault"); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	n, err := e.Import(ctx, "c2", "vault")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Import() = %d, want 1", n)
	}
	if got := log.Contents("c2"); len(got) != 1 || got[0] != "sealed away" {
		t.Errorf("channel = %v", got)
	}
}

func TestImportEncryptedBundleWithoutKey(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()
	e.BundleKey = newTestKey(t)

	log.SeedBot("c1", "locked")
	if _, err := e.Export(ctx, "c1", "locked"); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	e.BundleKey = nil
	if _, err := e.Import(ctx, "c1", "locked"); !errors.Is(err, ErrInput) {
		t.Fatalf("Import() error = %v, want ErrInput", err)
	}
}
