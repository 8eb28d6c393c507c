package db

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres test")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := openTestDB(t)
	// Second run must be a no-op, not an error.
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSecretKVRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := SetSecretKV(ctx, db, "test_secret", "hunter2"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetSecretKV(ctx, db, "test_secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("GetSecretKV = %q, want hunter2", got)
	}

	// Overwrite through the upsert path.
	if err := SetSecretKV(ctx, db, "test_secret", "hunter3"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	got, err = GetSecretKV(ctx, db, "test_secret")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if got != "hunter3" {
		t.Errorf("GetSecretKV after upsert = %q, want hunter3", got)
	}
}

func TestGetSecretKVMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := GetSecretKV(context.Background(), db, "never_written")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "" {
		t.Errorf("GetSecretKV for missing key = %q, want empty", got)
	}
}

func TestOperationLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := BeginOperation(ctx, db, "chan-1", "republish")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	op, err := GetOperation(ctx, db, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if op.Status != "running" || op.Kind != "republish" {
		t.Errorf("unexpected op after begin: %+v", op)
	}

	if err := FinishOperation(ctx, db, id, nil, "records=5"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	op, err = GetOperation(ctx, db, id)
	if err != nil {
		t.Fatalf("get after finish: %v", err)
	}
	if op.Status != "ok" || op.Detail != "records=5" || op.FinishedAt == nil {
		t.Errorf("unexpected op after finish: %+v", op)
	}

	ops, err := ListOperations(ctx, db, "chan-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, o := range ops {
		if o.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("finished operation not returned by ListOperations")
	}
}
