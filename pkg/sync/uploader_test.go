package sync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ridelink/server/pkg/integrations/strava"
	"github.com/ridelink/server/pkg/testing/mocks"
	"github.com/ridelink/server/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stravaStub runs an httptest server standing in for the Strava API.
type stravaStub struct {
	t       *testing.T
	srv     *httptest.Server
	mux     *http.ServeMux
	uploads   atomic.Int64 // POST /uploads count
	polls     atomic.Int64 // GET /uploads/{id} count
	gpxBody   atomic.Value // last uploaded file contents (string)
	nameField atomic.Value // last "name" form field (string)
}

func newStravaStub(t *testing.T) *stravaStub {
	t.Helper()
	s := &stravaStub{t: t, mux: http.NewServeMux()}
	s.srv = httptest.NewServer(s.mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stravaStub) client() *strava.Client {
	c := strava.NewClient(s.srv.Client())
	c.BaseURL = s.srv.URL
	return c
}

// serveUpload accepts the track file and serves poll responses in
// order, repeating the last one.
func (s *stravaStub) serveUpload(initial strava.UploadStatus, pollResponses ...strava.UploadStatus) {
	s.mux.HandleFunc("POST /uploads", func(w http.ResponseWriter, r *http.Request) {
		s.uploads.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			s.t.Errorf("parse upload form: %v", err)
		}
		f, _, err := r.FormFile("file")
		if err == nil {
			body, _ := io.ReadAll(f)
			s.gpxBody.Store(string(body))
		}
		s.nameField.Store(r.FormValue("name"))
		json.NewEncoder(w).Encode(initial)
	})
	s.mux.HandleFunc("GET /uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
		n := s.polls.Add(1)
		idx := int(n) - 1
		if idx >= len(pollResponses) {
			idx = len(pollResponses) - 1
		}
		if idx < 0 {
			s.t.Error("unexpected poll with no poll responses configured")
			http.Error(w, "no poll responses", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(pollResponses[idx])
	})
}

func newTestUploader(db *mocks.MockDatabase, pub *mocks.MockPublisher, stub *stravaStub) *Uploader {
	return &Uploader{
		DB:           db,
		Pub:          pub,
		Log:          testLogger(),
		ClientFor:    func(string) *strava.Client { return stub.client() },
		PollAttempts: 5,
		PollInterval: time.Millisecond,
	}
}

func recordWithRoute() *types.RideRecord {
	return &types.RideRecord{
		ID:          "ride-1",
		UserID:      "user-1",
		Route:       []types.Coordinate{{Lat: 39.9, Lng: 116.4}, {Lat: 39.91, Lng: 116.41}},
		CreatedTime: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Distance:    5000,
		Duration:    1200,
	}
}

func TestUploadAlreadyLinked(t *testing.T) {
	stub := newStravaStub(t)
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	rec := recordWithRoute()
	rec.StravaActivityID = "987"

	_, err := u.Upload(context.Background(), rec)
	if !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("err = %v, want ErrAlreadyLinked", err)
	}
	if stub.uploads.Load() != 0 {
		t.Error("no remote call should be made for a linked ride")
	}
}

func TestUploadNoRouteData(t *testing.T) {
	stub := newStravaStub(t)
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	rec := recordWithRoute()
	rec.Route = nil
	rec.StartCoordinate = ""

	_, err := u.Upload(context.Background(), rec)
	if !errors.Is(err, ErrNoRouteData) {
		t.Fatalf("err = %v, want ErrNoRouteData", err)
	}
}

func TestUploadResolvesAfterPolling(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(
		strava.UploadStatus{ID: 555, Status: "Your activity is still being processed."},
		strava.UploadStatus{ID: 555, Status: "Your activity is still being processed."},
		strava.UploadStatus{ID: 555, Status: "Your activity is ready.", ActivityID: 987},
	)

	var linked map[string]interface{}
	db := &mocks.MockDatabase{
		UpdateRideRecordFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			if id != "ride-1" {
				t.Errorf("updated ride %q", id)
			}
			linked = data
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	u := newTestUploader(db, pub, stub)

	outcome, err := u.Upload(context.Background(), recordWithRoute())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if outcome.Status != StatusSynced || outcome.ActivityID != "987" {
		t.Errorf("outcome = %+v", outcome)
	}
	if linked["strava_activity_id"] != "987" {
		t.Errorf("persisted link = %v", linked)
	}
	if len(pub.Published) != 1 {
		t.Errorf("published %d events, want 1", len(pub.Published))
	}
	if stub.polls.Load() != 2 {
		t.Errorf("polled %d times, want 2", stub.polls.Load())
	}
}

func TestUploadStillProcessingAfterBudget(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(
		strava.UploadStatus{ID: 555, Status: "Your activity is still being processed."},
		strava.UploadStatus{ID: 555, Status: "Your activity is still being processed."},
	)

	updates := 0
	db := &mocks.MockDatabase{
		UpdateRideRecordFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			updates++
			return nil
		},
	}
	u := newTestUploader(db, &mocks.MockPublisher{}, stub)

	outcome, err := u.Upload(context.Background(), recordWithRoute())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if outcome.Status != StatusProcessing || outcome.ActivityID != "" {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.UploadID != 555 {
		t.Errorf("upload ID = %d", outcome.UploadID)
	}
	if updates != 0 {
		t.Error("no link should be written while still processing")
	}
	if got := stub.polls.Load(); got != 5 {
		t.Errorf("polled %d times, want 5", got)
	}
}

func TestUploadRejectedByStrava(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(
		strava.UploadStatus{ID: 555, Status: "There was an error processing your activity.", Error: "duplicate of activity 987"},
	)
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	_, err := u.Upload(context.Background(), recordWithRoute())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should carry Strava's message, got %v", err)
	}
}

func TestUploadPersistFailureBecomesWarning(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(strava.UploadStatus{ID: 555, Status: "Your activity is ready.", ActivityID: 987})

	db := &mocks.MockDatabase{
		UpdateRideRecordFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			return errors.New("firestore unavailable")
		},
	}
	u := newTestUploader(db, &mocks.MockPublisher{}, stub)

	outcome, err := u.Upload(context.Background(), recordWithRoute())
	if err != nil {
		t.Fatalf("Upload should not fail after the remote activity exists: %v", err)
	}
	if outcome.Status != StatusSynced || outcome.PersistWarning == "" {
		t.Errorf("outcome = %+v", outcome)
	}
}

func TestUploadCollapsesIdenticalEndpoints(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(strava.UploadStatus{ID: 555, ActivityID: 987})
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	rec := recordWithRoute()
	rec.Route = nil
	rec.StartCoordinate = "39.9,116.4"
	rec.EndCoordinate = "39.9,116.4"

	if _, err := u.Upload(context.Background(), rec); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	doc, _ := stub.gpxBody.Load().(string)
	if got := strings.Count(doc, "<trkpt"); got != 1 {
		t.Errorf("track has %d points, want 1 for identical endpoints\n%s", got, doc)
	}
}

func TestUploadSendsActivityName(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(strava.UploadStatus{ID: 555, ActivityID: 987})
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	if _, err := u.Upload(context.Background(), recordWithRoute()); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Same synthesized name on the form field and inside the track file.
	want := "Ride 2024-05-01 08:00"
	if got, _ := stub.nameField.Load().(string); got != want {
		t.Errorf("name field = %q, want %q", got, want)
	}
	doc, _ := stub.gpxBody.Load().(string)
	if !strings.Contains(doc, "<name>"+want+"</name>") {
		t.Errorf("track file is missing the activity name\n%s", doc)
	}
}

func TestUploadUsesBothEndpointsWhenDistinct(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(strava.UploadStatus{ID: 555, ActivityID: 987})
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)

	rec := recordWithRoute()
	rec.Route = nil
	rec.StartCoordinate = "39.9,116.4"
	rec.EndCoordinate = "39.95,116.45"

	if _, err := u.Upload(context.Background(), rec); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	doc, _ := stub.gpxBody.Load().(string)
	if got := strings.Count(doc, "<trkpt"); got != 2 {
		t.Errorf("track has %d points, want 2\n%s", got, doc)
	}
}

func TestUploadLinksStatisticsBySourceKind(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(strava.UploadStatus{ID: 555, ActivityID: 987})

	statsUpdated := false
	db := &mocks.MockDatabase{
		UpdateRideStatisticsFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			statsUpdated = true
			return nil
		},
		UpdateRideRecordFunc: func(ctx context.Context, id string, data map[string]interface{}) error {
			t.Error("ride record update called for a statistics source")
			return nil
		},
	}
	u := newTestUploader(db, &mocks.MockPublisher{}, stub)

	stats := &types.RideStatistics{
		ID:          "stat-1",
		UserID:      "user-1",
		Route:       []types.Coordinate{{Lat: 1, Lng: 2}},
		CreatedTime: time.Now(),
		Duration:    60,
	}
	if _, err := u.Upload(context.Background(), stats); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !statsUpdated {
		t.Error("statistics record was not linked")
	}
}

func TestUploadHonorsContextCancellation(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveUpload(
		strava.UploadStatus{ID: 555, Status: "processing"},
		strava.UploadStatus{ID: 555, Status: "processing"},
	)
	u := newTestUploader(&mocks.MockDatabase{}, &mocks.MockPublisher{}, stub)
	u.PollInterval = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := u.Upload(ctx, recordWithRoute())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
