package api

import (
	"encoding/json"
	"errors"
	"net/http"

	httputil "github.com/ridelink/server/pkg/infrastructure/http"
	"github.com/ridelink/server/pkg/infrastructure/oauth"
	ridesync "github.com/ridelink/server/pkg/sync"
)

type errorBody struct {
	Error        string `json:"error"`
	RequiresAuth bool   `json:"requiresAuth,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors onto HTTP responses. Credential
// failures carry requiresAuth so clients know to restart the
// authorization flow instead of retrying.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oauth.ErrNotConnected):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "strava account not connected", RequiresAuth: true})
	case errors.Is(err, oauth.ErrReauthorizationRequired):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "strava authorization expired", RequiresAuth: true})
	case errors.Is(err, ridesync.ErrAlreadyLinked):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, ridesync.ErrNoRouteData):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, ridesync.ErrUploadFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		if he, ok := httputil.AsHTTPError(err); ok {
			switch {
			case he.StatusCode == http.StatusUnauthorized:
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "strava rejected credentials", RequiresAuth: true})
			case he.StatusCode == http.StatusTooManyRequests:
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: he.Error()})
			case he.Transient():
				// Retryable upstream trouble reads as a gateway problem.
				writeJSON(w, http.StatusBadGateway, errorBody{Error: he.Error()})
			default:
				// Permanent rejection; retrying the same request will
				// not help.
				writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: he.Error()})
			}
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
