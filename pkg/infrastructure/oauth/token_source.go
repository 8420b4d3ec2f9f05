package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	shared "github.com/ridelink/server/pkg"
)

const (
	// DefaultTokenURL is the Strava token endpoint, used for both the
	// authorization_code and refresh_token grants.
	DefaultTokenURL = "https://www.strava.com/oauth/token"

	// refreshExpiryBuffer triggers a proactive refresh when the token
	// expires within this window, avoiding a token that lapses mid-request.
	refreshExpiryBuffer = 5 * time.Minute
)

// ErrNotConnected means the user never completed the authorization
// handshake (no refresh token on record).
var ErrNotConnected = errors.New("oauth: strava account not connected")

// ErrReauthorizationRequired means Strava rejected the refresh token.
// The stored credential has been wiped; the user must authorize again.
var ErrReauthorizationRequired = errors.New("oauth: refresh rejected, reauthorization required")

// Token represents the OAuth token structure we care about.
// Stale marks a token returned as a best-effort fallback after a
// refresh transport failure: it may already be expired, and the caller
// decides whether that is acceptable.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Stale        bool
}

// TokenSource returns a valid token.
// It is safe for concurrent use by multiple goroutines.
type TokenSource interface {
	Token(context.Context) (*Token, error)
	ForceRefresh(context.Context) (*Token, error)
}

// StoreTokenSource reads credentials through the Database interface and
// refreshes them when necessary. Concurrent refreshes across separate
// sources for the same user are tolerated: both write a valid token and
// the last write wins. Tokens live hours, so lost updates are rare and
// self-healing.
type StoreTokenSource struct {
	db           shared.Database
	userID       string
	clientID     string
	clientSecret string

	// TokenURL may be overridden in tests; defaults to DefaultTokenURL.
	TokenURL string
	// HTTPClient may be overridden in tests; defaults to http.DefaultClient.
	HTTPClient *http.Client

	mu sync.Mutex
}

func NewStoreTokenSource(db shared.Database, userID, clientID, clientSecret string) *StoreTokenSource {
	return &StoreTokenSource{
		db:           db,
		userID:       userID,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Token returns a token, refreshing it if necessary.
func (s *StoreTokenSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}

	// Proactive refresh: treat a missing expiry as expired.
	shouldRefresh := cred.ExpiresAt == nil || time.Until(*cred.ExpiresAt) < refreshExpiryBuffer
	if !shouldRefresh {
		return &Token{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			Expiry:       *cred.ExpiresAt,
		}, nil
	}

	return s.refresh(ctx, cred.AccessToken, cred.RefreshToken)
}

// ForceRefresh forcibly refreshes the token regardless of expiry.
func (s *StoreTokenSource) ForceRefresh(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, err := s.credential(ctx)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, cred.AccessToken, cred.RefreshToken)
}

type storedCredential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

func (s *StoreTokenSource) credential(ctx context.Context) (*storedCredential, error) {
	user, err := s.db.GetUser(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Strava == nil || user.Strava.RefreshToken == "" {
		return nil, ErrNotConnected
	}
	return &storedCredential{
		AccessToken:  user.Strava.AccessToken,
		RefreshToken: user.Strava.RefreshToken,
		ExpiresAt:    user.Strava.ExpiresAt,
	}, nil
}

// refresh performs the HTTP exchange to get a new token and persists it.
// Failure handling distinguishes rejection from transport trouble:
//   - Strava rejects the refresh token: wipe the credential so the user
//     is forced to re-authorize, return ErrReauthorizationRequired.
//   - The request never completes (network, timeout): return the
//     previous access token marked Stale rather than failing the caller.
func (s *StoreTokenSource) refresh(ctx context.Context, prevAccessToken, refreshToken string) (*Token, error) {
	if s.clientID == "" || s.clientSecret == "" {
		slog.Error("Strava client credentials not configured", "component", "oauth")
		return s.staleFallback(prevAccessToken, refreshToken)
	}

	tokenURL := s.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	data := url.Values{}
	data.Set("client_id", s.clientID)
	data.Set("client_secret", s.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		slog.Warn("Token refresh request failed, returning previous token",
			"component", "oauth", "user_id", s.userID, "error", err)
		return s.staleFallback(prevAccessToken, refreshToken)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Strava refused the refresh token. The credential is dead;
		// clear it so status reports "not connected" and the user is
		// prompted to authorize again.
		slog.Warn("Token refresh rejected, clearing credentials",
			"component", "oauth", "user_id", s.userID, "status", resp.StatusCode)
		if wipeErr := s.wipeCredential(ctx); wipeErr != nil {
			slog.Error("Failed to clear rejected credentials",
				"component", "oauth", "user_id", s.userID, "error", wipeErr)
		}
		return nil, ErrReauthorizationRequired
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		ExpiresAt    int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		return nil, fmt.Errorf("token endpoint returned incomplete credential pair")
	}

	newExpiry := time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	if result.ExpiresAt != 0 {
		newExpiry = time.Unix(result.ExpiresAt, 0)
	}

	// Nested-map merge keeps athlete_id and any future siblings intact.
	updateData := map[string]interface{}{
		"strava": map[string]interface{}{
			"access_token":  result.AccessToken,
			"refresh_token": result.RefreshToken,
			"expires_at":    newExpiry,
		},
	}
	if err := s.db.UpdateUser(ctx, s.userID, updateData); err != nil {
		return nil, fmt.Errorf("failed to persist new tokens: %w", err)
	}

	return &Token{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Expiry:       newExpiry,
	}, nil
}

func (s *StoreTokenSource) staleFallback(accessToken, refreshToken string) (*Token, error) {
	if accessToken == "" {
		return nil, ErrNotConnected
	}
	return &Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Stale:        true,
	}, nil
}

func (s *StoreTokenSource) wipeCredential(ctx context.Context) error {
	return s.db.UpdateUser(ctx, s.userID, map[string]interface{}{
		"strava": map[string]interface{}{
			"access_token":  nil,
			"refresh_token": nil,
			"expires_at":    nil,
		},
	})
}
