package firestore

import (
	"testing"
	"time"

	"github.com/ridelink/server/pkg/types"
)

func f(v float64) *float64 { return &v }

func TestUserRoundTrip(t *testing.T) {
	expiry := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := &types.User{
		ID:        "user-1",
		Email:     "rider@example.com",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Strava: &types.StravaCredential{
			AccessToken:  "at",
			RefreshToken: "rt",
			ExpiresAt:    &expiry,
			AthleteID:    "13579",
		},
	}

	out := FirestoreToUser("user-1", UserToFirestore(in))
	if out.Email != in.Email || !out.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("user = %+v", out)
	}
	if out.Strava == nil || out.Strava.AccessToken != "at" || out.Strava.AthleteID != "13579" {
		t.Fatalf("credential = %+v", out.Strava)
	}
	if out.Strava.ExpiresAt == nil || !out.Strava.ExpiresAt.Equal(expiry) {
		t.Errorf("expiry = %v", out.Strava.ExpiresAt)
	}
	if !out.Strava.Connected() {
		t.Error("round-tripped credential should read as connected")
	}
}

func TestUserWithoutCredential(t *testing.T) {
	in := &types.User{ID: "user-1", Email: "rider@example.com"}
	out := FirestoreToUser("user-1", UserToFirestore(in))
	if out.Strava != nil {
		t.Errorf("credential = %+v, want nil", out.Strava)
	}
	if out.Strava.Connected() {
		t.Error("nil credential must read as disconnected")
	}
}

func TestRideRecordRoundTrip(t *testing.T) {
	in := &types.RideRecord{
		ID:               "ride-1",
		UserID:           "user-1",
		Route:            []types.Coordinate{{Lat: 39.9, Lng: 116.4, Elevation: f(44)}, {Lat: 39.91, Lng: 116.41}},
		StartCoordinate:  "39.9,116.4",
		EndCoordinate:    "39.91,116.41",
		CreatedTime:      time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Distance:         5000,
		Duration:         1200,
		Elevation:        f(320),
		StravaActivityID: "987",
	}

	out := FirestoreToRideRecord("ride-1", RideRecordToFirestore(in))
	if out.UserID != "user-1" || out.Distance != 5000 || out.Duration != 1200 {
		t.Errorf("record = %+v", out)
	}
	if len(out.Route) != 2 {
		t.Fatalf("route has %d points", len(out.Route))
	}
	if out.Route[0].Elevation == nil || *out.Route[0].Elevation != 44 {
		t.Errorf("route[0].Elevation = %v", out.Route[0].Elevation)
	}
	if out.Route[1].Elevation != nil {
		t.Errorf("route[1].Elevation = %v, want nil", out.Route[1].Elevation)
	}
	if out.StravaActivityID != "987" {
		t.Errorf("activity link = %q", out.StravaActivityID)
	}
}

func TestRideStatisticsOptionalFieldsStayNil(t *testing.T) {
	in := &types.RideStatistics{
		ID:          "stat-1",
		UserID:      "user-1",
		CreatedTime: time.Now(),
		Distance:    25000,
		Duration:    3600,
		AvgAltitude: f(50),
	}

	data := RideStatisticsToFirestore(in)
	// Absent optional stats are stored as explicit nulls.
	if data["uphill_distance"] != nil || data["heat_consumption"] != nil {
		t.Errorf("optional fields = %v / %v", data["uphill_distance"], data["heat_consumption"])
	}
	if data["avg_altitude"] != 50.0 {
		t.Errorf("avg_altitude = %v", data["avg_altitude"])
	}

	out := FirestoreToRideStatistics("stat-1", data)
	if out.UphillDistance != nil || out.DownhillDistance != nil || out.FlatDistance != nil {
		t.Error("nil stats must survive the round trip as nil")
	}
	if out.AvgAltitude == nil || *out.AvgAltitude != 50 {
		t.Errorf("avg_altitude = %v", out.AvgAltitude)
	}
}

func TestNumericDecodingHandlesFirestoreInt64(t *testing.T) {
	data := map[string]interface{}{
		"user_id":  "user-1",
		"distance": int64(5000),
		"duration": int64(1200),
	}
	out := FirestoreToRideRecord("ride-1", data)
	if out.Distance != 5000 || out.Duration != 1200 {
		t.Errorf("record = %+v", out)
	}
}
