package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/marovik/scribe/crypto"
	"github.com/marovik/scribe/testutil"
)

func testEncryptor(t *testing.T) *crypto.AESEncryptor {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate random key: %v", err)
	}
	enc, err := crypto.NewAESEncryptor(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	return enc
}

func TestMigrateTokensDryRun(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	encryptor := testEncryptor(t)

	provider := fmt.Sprintf("mig-dry-%d", time.Now().UnixNano())
	_, err := database.ExecContext(ctx,
		`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version)
		 VALUES ($1, $2, $3, $4, $5, 0)`,
		provider, "plain-access", "plain-refresh", time.Now().Add(time.Hour), "drive.file")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.ExecContext(context.Background(), `DELETE FROM oauth_tokens WHERE provider = $1`, provider)
	})

	if err := migrateTokens(ctx, database, encryptor, true, ""); err != nil {
		t.Fatalf("migrateTokens(dry-run) failed: %v", err)
	}

	var storedAccess string
	var encVersion int
	err = database.QueryRowContext(ctx,
		`SELECT access_token, encryption_version FROM oauth_tokens WHERE provider = $1`,
		provider).Scan(&storedAccess, &encVersion)
	if err != nil {
		t.Fatalf("failed to query token: %v", err)
	}
	if encVersion != 0 {
		t.Errorf("dry-run should not change encryption_version, got %d", encVersion)
	}
	if storedAccess != "plain-access" {
		t.Errorf("dry-run should not change access_token, got %q", storedAccess)
	}
}

func TestMigrateTokensEncryptsPlaintextRows(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	encryptor := testEncryptor(t)

	provider := fmt.Sprintf("mig-real-%d", time.Now().UnixNano())
	_, err := database.ExecContext(ctx,
		`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version)
		 VALUES ($1, $2, $3, $4, $5, 0)`,
		provider, "plain-access", "plain-refresh", time.Now().Add(time.Hour), "drive.file")
	if err != nil {
		t.Fatalf("failed to insert test token: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.ExecContext(context.Background(), `DELETE FROM oauth_tokens WHERE provider = $1`, provider)
	})

	if err := migrateTokens(ctx, database, encryptor, false, provider); err != nil {
		t.Fatalf("migrateTokens failed: %v", err)
	}

	var storedAccess, storedRefresh, keyID string
	var encVersion int
	err = database.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, encryption_version, COALESCE(encryption_key_id,'')
		 FROM oauth_tokens WHERE provider = $1`,
		provider).Scan(&storedAccess, &storedRefresh, &encVersion, &keyID)
	if err != nil {
		t.Fatalf("failed to query token: %v", err)
	}
	if encVersion != 1 || keyID != "default" {
		t.Errorf("row not marked encrypted: version=%d key_id=%q", encVersion, keyID)
	}
	if storedAccess == "plain-access" || storedRefresh == "plain-refresh" {
		t.Error("tokens still stored in plaintext")
	}

	// The ciphertext must decrypt back to the original values.
	gotAccess, err := crypto.DecryptString(encryptor, storedAccess)
	if err != nil {
		t.Fatalf("decrypt access: %v", err)
	}
	gotRefresh, err := crypto.DecryptString(encryptor, storedRefresh)
	if err != nil {
		t.Fatalf("decrypt refresh: %v", err)
	}
	if gotAccess != "plain-access" || gotRefresh != "plain-refresh" {
		t.Errorf("round trip = %q/%q", gotAccess, gotRefresh)
	}

	// A second run must not touch the already encrypted row.
	if err := migrateTokens(ctx, database, encryptor, false, provider); err != nil {
		t.Fatalf("second migrateTokens failed: %v", err)
	}
	var secondAccess string
	if err := database.QueryRowContext(ctx,
		`SELECT access_token FROM oauth_tokens WHERE provider = $1`, provider).Scan(&secondAccess); err != nil {
		t.Fatalf("failed to re-query token: %v", err)
	}
	if secondAccess != storedAccess {
		t.Error("second run re-encrypted an already encrypted row")
	}
}

func TestMigrateTokensProviderFilter(t *testing.T) {
	database := testutil.SetupTestDB(t)
	ctx := context.Background()
	encryptor := testEncryptor(t)

	var err error
	nano := time.Now().UnixNano()
	target := fmt.Sprintf("mig-target-%d", nano)
	other := fmt.Sprintf("mig-other-%d", nano)
	for _, p := range []string{target, other} {
		_, err = database.ExecContext(ctx,
			`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, encryption_version)
			 VALUES ($1, 'plain-access', 'plain-refresh', $2, '', 0)`,
			p, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("failed to insert %s: %v", p, err)
		}
	}
	t.Cleanup(func() {
		_, _ = database.ExecContext(context.Background(),
			`DELETE FROM oauth_tokens WHERE provider IN ($1, $2)`, target, other)
	})

	if err := migrateTokens(ctx, database, encryptor, false, target); err != nil {
		t.Fatalf("migrateTokens failed: %v", err)
	}

	var targetVersion, otherVersion int
	if err := database.QueryRowContext(ctx,
		`SELECT encryption_version FROM oauth_tokens WHERE provider = $1`, target).Scan(&targetVersion); err != nil {
		t.Fatalf("query target: %v", err)
	}
	if err := database.QueryRowContext(ctx,
		`SELECT encryption_version FROM oauth_tokens WHERE provider = $1`, other).Scan(&otherVersion); err != nil {
		t.Fatalf("query other: %v", err)
	}
	if targetVersion != 1 {
		t.Errorf("filtered provider not migrated: version=%d", targetVersion)
	}
	if otherVersion != 0 {
		t.Errorf("unfiltered provider was migrated: version=%d", otherVersion)
	}
}

func TestReportEncryptionStatus(t *testing.T) {
	database := testutil.SetupTestDB(t)
	if err := reportEncryptionStatus(context.Background(), database); err != nil {
		t.Fatalf("reportEncryptionStatus failed: %v", err)
	}
}
