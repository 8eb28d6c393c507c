package chanops

import (
	"context"
	"errors"
	"testing"

	"github.com/marovik/scribe/platform"
)

func TestEmbedifySplitsTitle(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	rec := log.SeedBot("c1", "**# Guide** rest of the text")

	got, err := e.Embedify(ctx, "c1", rec.ID)
	if err != nil {
		t.Fatalf("Embedify() error = %v", err)
	}
	// The # marker stays; only the contents list strips it.
	if got.Content != "**# Guide**" {
		t.Errorf("content = %q, want the bold title", got.Content)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Description != "rest of the text" {
		t.Errorf("embeds = %+v, want the remainder as description", got.Embeds)
	}

	last := log.Edits[len(log.Edits)-1]
	if last.Edit.SuppressEmbeds == nil || *last.Edit.SuppressEmbeds {
		t.Error("embedify should un-suppress so the embed renders")
	}
}

func TestEmbedifyMultilineBody(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	rec := log.SeedBot("c1", "**Routes**\nline one\nline two")

	got, err := e.Embedify(ctx, "c1", rec.ID)
	if err != nil {
		t.Fatalf("Embedify() error = %v", err)
	}
	if got.Content != "**Routes**" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Embeds[0].Description != "line one\nline two" {
		t.Errorf("description = %q", got.Embeds[0].Description)
	}
}

func TestEmbedifyNoTitle(t *testing.T) {
	e, log := newTestEngine(t)

	rec := log.SeedBot("c1", "no bold lead")

	if _, err := e.Embedify(context.Background(), "c1", rec.ID); !errors.Is(err, ErrInput) {
		t.Fatalf("Embedify() error = %v, want ErrInput", err)
	}
	if len(log.Edits) != 0 {
		t.Error("no edit expected")
	}
}

func TestEmbedifyForeignRecord(t *testing.T) {
	e, log := newTestEngine(t)

	rec := log.SeedUser("c1", "u4", "**Their** post")

	if _, err := e.Embedify(context.Background(), "c1", rec.ID); !errors.Is(err, ErrInput) {
		t.Fatalf("Embedify() error = %v, want ErrInput", err)
	}
}

func TestEmbedifyUnknownRecord(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Embedify(context.Background(), "c1", "m404")
	if !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("Embedify() error = %v, want ErrNotFound", err)
	}
	if !IsInputError(err) {
		t.Errorf("Classify(%v) = %v, want input", err, Classify(err))
	}
}
