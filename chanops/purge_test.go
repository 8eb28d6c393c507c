package chanops

import (
	"context"
	"errors"
	"testing"

	"github.com/marovik/scribe/platform"
)

func TestPurgeDeletesNewest(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	keep1 := log.SeedBot("c1", "one")
	keep2 := log.SeedUser("c1", "u2", "two")
	third := log.SeedBot("c1", "three")
	fourth := log.SeedUser("c1", "u2", "four")

	n, err := e.Purge(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Purge() = %d, want 2", n)
	}
	if len(log.Deletes) != 2 || log.Deletes[0] != fourth.ID || log.Deletes[1] != third.ID {
		t.Errorf("deletes = %v, want newest first", log.Deletes)
	}

	recs := log.Records("c1")
	if len(recs) != 2 || recs[0].ID != keep1.ID || recs[1].ID != keep2.ID {
		t.Errorf("remaining records = %+v", recs)
	}
}

func TestPurgeMoreThanAvailable(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	log.SeedBot("c1", "a")
	log.SeedBot("c1", "b")
	log.SeedBot("c1", "c")

	n, err := e.Purge(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Purge() = %d, want 3", n)
	}
	if len(log.Records("c1")) != 0 {
		t.Error("channel should be empty")
	}
}

func TestPurgeRejectsNonPositive(t *testing.T) {
	e, log := newTestEngine(t)
	log.SeedBot("c1", "stays")

	for _, limit := range []int{0, -3} {
		if _, err := e.Purge(context.Background(), "c1", limit); !errors.Is(err, ErrInput) {
			t.Errorf("Purge(%d) error = %v, want ErrInput", limit, err)
		}
	}
	if len(log.Deletes) != 0 {
		t.Error("nothing should be deleted")
	}
}

func TestPurgeDeleteFailureStops(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	oldest := log.SeedBot("c1", "one")
	second := log.SeedBot("c1", "two")
	log.SeedBot("c1", "three")

	log.FailDelete[second.ID] = &platform.APIError{Status: 500, Message: "upstream"}

	n, err := e.Purge(ctx, "c1", 3)
	if err == nil {
		t.Fatal("Purge() expected error")
	}
	if n != 1 {
		t.Errorf("Purge() = %d, want 1 before the failure", n)
	}
	recs := log.Records("c1")
	if len(recs) != 2 || recs[0].ID != oldest.ID {
		t.Errorf("remaining records = %+v", recs)
	}
}
