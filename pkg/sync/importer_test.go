package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ridelink/server/pkg/integrations/strava"
	"github.com/ridelink/server/pkg/testing/mocks"
	"github.com/ridelink/server/pkg/types"
)

func (s *stravaStub) serveActivity(a strava.Activity) {
	s.mux.HandleFunc("GET /activities/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(a)
	})
}

func (s *stravaStub) serveStreams(streams *strava.StreamSet) {
	s.mux.HandleFunc("GET /activities/{id}/streams", func(w http.ResponseWriter, r *http.Request) {
		if streams == nil {
			http.Error(w, `{"message":"Resource Not Found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(streams)
	})
}

func newTestImporter(db *mocks.MockDatabase, pub *mocks.MockPublisher, stub *stravaStub) *Importer {
	return &Importer{
		DB:        db,
		Pub:       pub,
		Log:       testLogger(),
		ClientFor: func(string) *strava.Client { return stub.client() },
	}
}

func rideActivity() strava.Activity {
	calories := 850.0
	return strava.Activity{
		ID:                 987,
		Name:               "Lunch Ride",
		Type:               "Ride",
		SportType:          "Ride",
		Distance:           25000,
		MovingTime:         3600,
		ElapsedTime:        4000,
		TotalElevationGain: 320,
		AverageSpeed:       6.94,
		Calories:           &calories,
		StartDate:          time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
		StartLatLng:        []float64{39.9, 116.4},
		EndLatLng:          []float64{39.95, 116.45},
	}
}

func TestImportActivityWithStreams(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveActivity(rideActivity())
	stub.serveStreams(&strava.StreamSet{
		LatLng: &strava.LatLngStream{Data: [][]float64{
			{39.901, 116.401}, {39.92, 116.42}, {39.949, 116.449},
		}},
		Altitude: &strava.FloatStream{Data: []float64{40, 60, 50}},
		Time:     &strava.IntStream{Data: []int{0, 1800, 3600}},
	})

	var created *types.RideStatistics
	db := &mocks.MockDatabase{
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			created = stats
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	im := newTestImporter(db, pub, stub)

	stats, err := im.ImportActivity(context.Background(), "user-1", 987)
	if err != nil {
		t.Fatalf("ImportActivity: %v", err)
	}
	if created == nil || created != stats {
		t.Fatal("record was not persisted")
	}
	if stats.ID == "" {
		t.Error("record should get a generated id")
	}
	if stats.StravaActivityID != "987" || stats.UserID != "user-1" {
		t.Errorf("linkage = %q / %q", stats.StravaActivityID, stats.UserID)
	}
	if len(stats.Route) != 3 {
		t.Fatalf("route has %d points", len(stats.Route))
	}
	// Summary endpoints override the clipped stream endpoints.
	if stats.Route[0].Lat != 39.9 || stats.Route[2].Lng != 116.45 {
		t.Errorf("endpoints = %+v / %+v", stats.Route[0], stats.Route[2])
	}
	if stats.Route[1].Elevation == nil || *stats.Route[1].Elevation != 60 {
		t.Errorf("mid-point elevation = %v", stats.Route[1].Elevation)
	}
	if stats.StartCoordinate != "39.9,116.4" || stats.EndCoordinate != "39.95,116.45" {
		t.Errorf("coordinates = %q / %q", stats.StartCoordinate, stats.EndCoordinate)
	}
	if stats.AvgAltitude == nil || *stats.AvgAltitude != 50 {
		t.Errorf("avg altitude = %v", stats.AvgAltitude)
	}
	if stats.MaxAltitude == nil || *stats.MaxAltitude != 60 {
		t.Errorf("max altitude = %v", stats.MaxAltitude)
	}
	if stats.Duration != 3600 {
		t.Errorf("duration = %d, want moving time", stats.Duration)
	}
	if stats.HeatConsumption == nil || *stats.HeatConsumption != 850 {
		t.Errorf("heat consumption = %v", stats.HeatConsumption)
	}
	if stats.UphillDistance != nil || stats.DownhillDistance != nil || stats.FlatDistance != nil {
		t.Error("terrain split distances must stay nil, not fabricated")
	}
	if len(pub.Published) != 1 {
		t.Errorf("published %d events, want 1", len(pub.Published))
	}
}

func TestImportActivityWithoutStreams(t *testing.T) {
	stub := newStravaStub(t)
	stub.serveActivity(rideActivity())
	stub.serveStreams(nil)

	var created *types.RideStatistics
	db := &mocks.MockDatabase{
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			created = stats
			return nil
		},
	}
	im := newTestImporter(db, &mocks.MockPublisher{}, stub)

	if _, err := im.ImportActivity(context.Background(), "user-1", 987); err != nil {
		t.Fatalf("ImportActivity: %v", err)
	}
	if created.Route != nil {
		t.Errorf("route = %+v, want nil when the activity has no streams", created.Route)
	}
	// The summary endpoints still land in the coordinate strings.
	if created.StartCoordinate != "39.9,116.4" || created.EndCoordinate != "39.95,116.45" {
		t.Errorf("coordinates = %q / %q", created.StartCoordinate, created.EndCoordinate)
	}
	if created.AvgAltitude != nil || created.MaxAltitude != nil {
		t.Error("altitude stats require an altitude stream")
	}
}

func TestImportActivityEndCoordinateFallsBackToStart(t *testing.T) {
	stub := newStravaStub(t)
	a := rideActivity()
	a.EndLatLng = nil
	stub.serveActivity(a)
	stub.serveStreams(nil)

	var created *types.RideStatistics
	db := &mocks.MockDatabase{
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			created = stats
			return nil
		},
	}
	im := newTestImporter(db, &mocks.MockPublisher{}, stub)

	if _, err := im.ImportActivity(context.Background(), "user-1", 987); err != nil {
		t.Fatalf("ImportActivity: %v", err)
	}
	if created.Route != nil {
		t.Errorf("route = %+v, want nil", created.Route)
	}
	if created.StartCoordinate != "39.9,116.4" || created.EndCoordinate != "39.9,116.4" {
		t.Errorf("coordinates = %q / %q", created.StartCoordinate, created.EndCoordinate)
	}
}

func TestImportActivityIdempotent(t *testing.T) {
	stub := newStravaStub(t)
	existing := &types.RideStatistics{ID: "stat-1", UserID: "user-1", StravaActivityID: "987"}

	creates := 0
	db := &mocks.MockDatabase{
		FindRideStatisticsByActivityIDFunc: func(ctx context.Context, userID, activityID string) (*types.RideStatistics, error) {
			if userID != "user-1" || activityID != "987" {
				t.Errorf("dedup lookup for %q/%q", userID, activityID)
			}
			return existing, nil
		},
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			creates++
			return nil
		},
	}
	pub := &mocks.MockPublisher{}
	im := newTestImporter(db, pub, stub)

	stats, err := im.ImportActivity(context.Background(), "user-1", 987)
	if err != nil {
		t.Fatalf("ImportActivity: %v", err)
	}
	if stats != existing {
		t.Error("expected the existing record back")
	}
	if creates != 0 || len(pub.Published) != 0 {
		t.Error("a duplicate import must write and publish nothing")
	}
}

func TestImportActivityRejectsOtherSports(t *testing.T) {
	stub := newStravaStub(t)
	a := rideActivity()
	a.Type = "Run"
	a.SportType = "Run"
	stub.serveActivity(a)
	stub.serveStreams(nil)

	creates := 0
	db := &mocks.MockDatabase{
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			creates++
			return nil
		},
	}
	im := newTestImporter(db, &mocks.MockPublisher{}, stub)

	_, err := im.ImportActivity(context.Background(), "user-1", 987)
	if !errors.Is(err, ErrUnsupportedSport) {
		t.Fatalf("err = %v, want ErrUnsupportedSport", err)
	}
	if creates != 0 {
		t.Error("unsupported activity must not be persisted")
	}
}

func TestImportActivityDurationFallsBackToElapsed(t *testing.T) {
	stub := newStravaStub(t)
	a := rideActivity()
	a.MovingTime = 0
	stub.serveActivity(a)
	stub.serveStreams(nil)

	var created *types.RideStatistics
	db := &mocks.MockDatabase{
		CreateRideStatisticsFunc: func(ctx context.Context, stats *types.RideStatistics) error {
			created = stats
			return nil
		},
	}
	im := newTestImporter(db, &mocks.MockPublisher{}, stub)

	if _, err := im.ImportActivity(context.Background(), "user-1", 987); err != nil {
		t.Fatalf("ImportActivity: %v", err)
	}
	if created.Duration != 4000 {
		t.Errorf("duration = %d, want elapsed time fallback", created.Duration)
	}
}
