package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ridelink/server/pkg/types"
)

// loadSource resolves the {id} path parameter plus the ?type= query
// into a ride source. Rides belonging to another user read as not
// found.
func (s *Server) loadSource(r *http.Request) (types.RideSource, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil, false
	}

	var src types.RideSource
	switch r.URL.Query().Get("type") {
	case "statistics":
		stats, err := s.DB.GetRideStatistics(r.Context(), id)
		if err != nil || stats == nil {
			return nil, false
		}
		src = stats
	default:
		rec, err := s.DB.GetRideRecord(r.Context(), id)
		if err != nil || rec == nil {
			return nil, false
		}
		src = rec
	}

	if src.Owner() != userID(r) {
		return nil, false
	}
	return src, true
}

// handleUpload pushes one ride to Strava and waits briefly for the
// async processing to resolve.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	src, ok := s.loadSource(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "ride not found"})
		return
	}

	outcome, err := s.Uploader.Upload(r.Context(), src)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type checkUploadResponse struct {
	Synced     bool   `json:"synced"`
	ActivityID string `json:"activityId,omitempty"`
}

// handleCheckUpload reports whether a ride has already been linked to a
// Strava activity.
func (s *Server) handleCheckUpload(w http.ResponseWriter, r *http.Request) {
	src, ok := s.loadSource(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "ride not found"})
		return
	}
	writeJSON(w, http.StatusOK, checkUploadResponse{
		Synced:     src.ActivityID() != "",
		ActivityID: src.ActivityID(),
	})
}

type uploadStatusResponse struct {
	UploadID   int64  `json:"uploadId"`
	Status     string `json:"status"`
	ActivityID string `json:"activityId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// handleUploadStatus re-reads an async upload that was still processing
// when the upload call returned.
func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	uploadID, err := strconv.ParseInt(chi.URLParam(r, "uploadID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid upload id"})
		return
	}

	status, err := s.ClientFor(userID(r)).GetUpload(r.Context(), uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := uploadStatusResponse{UploadID: status.ID, Status: status.Status, Error: status.Error}
	if status.ActivityID != 0 {
		resp.ActivityID = strconv.FormatInt(status.ActivityID, 10)
	}
	writeJSON(w, http.StatusOK, resp)
}
