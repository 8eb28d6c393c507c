// Package archive wraps Google OAuth2 client config and the Drive API for
// the single purpose of uploading export bundle documents. Tokens are
// persisted via the provided TokenStore interface so they can be refreshed
// and reused across restarts. The feature is optional; without Drive
// credentials exports stay local only.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/marovik/scribe/config"
	"github.com/marovik/scribe/oauth"
)

// Provider keys the oauth_tokens row holding the Drive refresh token.
const Provider = "drive"

// TokenStore persists OAuth tokens between restarts. *db.TokenStoreAdapter
// satisfies it.
type TokenStore interface {
	UpsertOAuthToken(ctx context.Context, provider string, accessToken string, refreshToken string, expiry time.Time) error
	GetOAuthToken(ctx context.Context, provider string) (accessToken string, refreshToken string, expiry time.Time, err error)
}

type Service struct {
	cfg   *config.Config
	db    TokenStore
	oauth *oauth2.Config

	// clientOpts is appended to the Drive client options, swappable in
	// tests to point at a local server.
	clientOpts []option.ClientOption
}

func New(cfg *config.Config, ts TokenStore) *Service {
	conf := &oauth2.Config{
		ClientID:     cfg.DriveClientID,
		ClientSecret: cfg.DriveClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.DriveRedirectURI,
		Scopes:       []string{drive.DriveFileScope},
	}
	return &Service{cfg: cfg, db: ts, oauth: conf}
}

// Enabled reports whether Drive credentials are configured.
func (s *Service) Enabled() bool {
	return s.cfg.DriveEnabled()
}

// AuthCodeURL builds the consent URL for the admin connect flow.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an auth code for tokens and persists them.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertOAuthToken(ctx, Provider, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		return nil, fmt.Errorf("persist drive token: %w", err)
	}
	return tok, nil
}

// RefreshFunc adapts the Google token endpoint to the generic background
// refresher.
func (s *Service) RefreshFunc() oauth.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		tok, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return tok.AccessToken, tok.RefreshToken, tok.Expiry, strings.Join(s.oauth.Scopes, " "), nil
	}
}

func (s *Service) refreshIfNeeded(ctx context.Context) (*oauth2.Token, error) {
	access, refresh, expiry, err := s.db.GetOAuthToken(ctx, Provider)
	if err != nil {
		return nil, err
	}
	if access == "" && refresh == "" {
		return nil, errors.New("no drive token stored, connect the archive first")
	}
	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, Expiry: expiry}
	if time.Until(tok.Expiry) > 2*time.Minute {
		return tok, nil
	}
	newTok, err := s.oauth.TokenSource(ctx, tok).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh drive token: %w", err)
	}
	if err := s.db.UpsertOAuthToken(ctx, Provider, newTok.AccessToken, newTok.RefreshToken, newTok.Expiry); err != nil {
		return nil, fmt.Errorf("persist drive token: %w", err)
	}
	return newTok, nil
}

func (s *Service) client(ctx context.Context) (*drive.Service, error) {
	tok, err := s.refreshIfNeeded(ctx)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(s.oauth.Client(ctx, tok))}, s.clientOpts...)
	return drive.NewService(ctx, opts...)
}

// Upload stores the bundle document at path in the configured Drive folder
// and returns a view link.
func (s *Service) Upload(ctx context.Context, path string) (string, error) {
	svc, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(path), MimeType: mimeFor(path)}
	if s.cfg.DriveFolderID != "" {
		meta.Parents = []string{s.cfg.DriveFolderID}
	}
	res, err := svc.Files.Create(meta).
		Media(f, googleapi.ContentType(meta.MimeType)).
		Fields("id", "webViewLink").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	if res.Id == "" {
		return "", fmt.Errorf("drive upload: empty file id")
	}
	if res.WebViewLink != "" {
		return res.WebViewLink, nil
	}
	return "https://drive.google.com/file/d/" + res.Id, nil
}

// Encrypted bundles keep their .enc suffix on Drive; only plain documents
// are marked as JSON.
func mimeFor(path string) string {
	if strings.HasSuffix(path, ".json") {
		return "application/json"
	}
	return "application/octet-stream"
}
