package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ridelink/server/pkg/infrastructure/oauth"
)

// authState is round-tripped through Strava's authorize redirect so the
// callback can tell which local account initiated the flow.
type authState struct {
	UserID string `json:"userId"`
}

func encodeState(st authState) string {
	raw, _ := json.Marshal(st)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeState(s string) (authState, error) {
	var st authState
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(raw, &st)
	return st, err
}

// handleAuthorize starts the OAuth flow by redirecting the user to
// Strava's consent screen.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	conf := oauth.NewConfig(s.Cfg.StravaClientID, s.Cfg.StravaClientSecret, s.Cfg.RedirectURI())
	authURL := oauth.AuthCodeURL(conf, encodeState(authState{UserID: userID(r)}))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleCallback receives Strava's redirect, trades the code for a
// credential pair and stores it on the user. The browser always ends up
// at the auth result page; success or failure rides on the query.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		// User declined on the consent screen.
		s.redirectResult(w, r, url.Values{"error": {errCode}})
		return
	}

	st, err := decodeState(q.Get("state"))
	if err != nil || st.UserID == "" {
		s.Log.Warn("Callback with invalid state", "error", err)
		s.redirectResult(w, r, url.Values{"error": {"invalid_state"}})
		return
	}

	code := q.Get("code")
	if code == "" {
		s.redirectResult(w, r, url.Values{"error": {"missing_code"}})
		return
	}

	conf := oauth.NewConfig(s.Cfg.StravaClientID, s.Cfg.StravaClientSecret, s.Cfg.RedirectURI())
	token, athleteID, err := oauth.Exchange(r.Context(), conf, code)
	if err != nil {
		s.Log.Error("Code exchange failed", "user_id", st.UserID, "error", err)
		s.redirectResult(w, r, url.Values{"error": {"exchange_failed"}})
		return
	}

	cred := map[string]interface{}{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.Expiry,
	}
	if athleteID != "" {
		cred["athlete_id"] = athleteID
	}
	if err := s.DB.UpdateUser(r.Context(), st.UserID, map[string]interface{}{"strava": cred}); err != nil {
		s.Log.Error("Failed to persist credential", "user_id", st.UserID, "error", err)
		s.redirectResult(w, r, url.Values{"error": {"persist_failed"}})
		return
	}

	s.Log.Info("Strava account connected", "user_id", st.UserID, "athlete_id", athleteID)
	s.redirectResult(w, r, url.Values{"success": {"true"}})
}

func (s *Server) redirectResult(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, s.Cfg.AuthResultURL+"?"+params.Encode(), http.StatusFound)
}

type statusResponse struct {
	Connected bool       `json:"connected"`
	AthleteID string     `json:"athleteId,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// handleStatus reports whether the user's Strava link is usable.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.DB.GetUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := statusResponse{}
	if user != nil && user.Strava.Connected() {
		resp.Connected = true
		resp.AthleteID = user.Strava.AthleteID
		resp.ExpiresAt = user.Strava.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Stale     bool      `json:"stale,omitempty"`
}

// handleRefreshToken forces a credential refresh. Mostly a debugging
// aid; the transport refreshes proactively on its own.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.TokenSourceFor(userID(r)).ForceRefresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{ExpiresAt: token.Expiry, Stale: token.Stale})
}
