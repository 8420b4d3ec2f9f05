package firestore

import (
	"time"

	"github.com/ridelink/server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get float from map (Firestore numbers decode as float64 or int64)
func getFloat(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	if f, ok := getFloat(m, key); ok {
		return &f
	}
	return nil
}

func getInt(m map[string]interface{}, key string) int {
	if f, ok := getFloat(m, key); ok {
		return int(f)
	}
	return 0
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getTimePtr(m map[string]interface{}, key string) *time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return &t
		}
	}
	return nil
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]interface{}); ok {
			return sub
		}
	}
	return nil
}

// --- Route converters ---

func routeToFirestore(route []types.Coordinate) []interface{} {
	if route == nil {
		return nil
	}
	out := make([]interface{}, 0, len(route))
	for _, pt := range route {
		m := map[string]interface{}{
			"lat": pt.Lat,
			"lng": pt.Lng,
		}
		if pt.Elevation != nil {
			m["elevation"] = *pt.Elevation
		}
		out = append(out, m)
	}
	return out
}

func firestoreToRoute(v interface{}) []types.Coordinate {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	route := make([]types.Coordinate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		pt := types.Coordinate{}
		pt.Lat, _ = getFloat(m, "lat")
		pt.Lng, _ = getFloat(m, "lng")
		pt.Elevation = getFloatPtr(m, "elevation")
		route = append(route, pt)
	}
	return route
}

// --- User converters ---

func UserToFirestore(u *types.User) map[string]interface{} {
	m := map[string]interface{}{
		"email":      u.Email,
		"created_at": u.CreatedAt,
	}
	if u.Strava != nil {
		strava := map[string]interface{}{
			"access_token":  u.Strava.AccessToken,
			"refresh_token": u.Strava.RefreshToken,
			"athlete_id":    u.Strava.AthleteID,
		}
		if u.Strava.ExpiresAt != nil {
			strava["expires_at"] = *u.Strava.ExpiresAt
		}
		m["strava"] = strava
	}
	return m
}

func FirestoreToUser(id string, data map[string]interface{}) *types.User {
	u := &types.User{
		ID:        id,
		Email:     getString(data, "email"),
		CreatedAt: getTime(data, "created_at"),
	}
	if strava := getMap(data, "strava"); strava != nil {
		u.Strava = &types.StravaCredential{
			AccessToken:  getString(strava, "access_token"),
			RefreshToken: getString(strava, "refresh_token"),
			ExpiresAt:    getTimePtr(strava, "expires_at"),
			AthleteID:    getString(strava, "athlete_id"),
		}
	}
	return u
}

// --- RideRecord converters ---

func RideRecordToFirestore(r *types.RideRecord) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":          r.UserID,
		"start_coordinate": r.StartCoordinate,
		"end_coordinate":   r.EndCoordinate,
		"created_time":     r.CreatedTime,
		"distance":         r.Distance,
		"duration":         r.Duration,
	}
	if r.Route != nil {
		m["route"] = routeToFirestore(r.Route)
	}
	if r.Elevation != nil {
		m["elevation"] = *r.Elevation
	}
	if r.AvgSpeed != nil {
		m["avg_speed"] = *r.AvgSpeed
	}
	if r.StravaActivityID != "" {
		m["strava_activity_id"] = r.StravaActivityID
	}
	return m
}

func FirestoreToRideRecord(id string, data map[string]interface{}) *types.RideRecord {
	r := &types.RideRecord{
		ID:              id,
		UserID:          getString(data, "user_id"),
		Route:           firestoreToRoute(data["route"]),
		StartCoordinate: getString(data, "start_coordinate"),
		EndCoordinate:   getString(data, "end_coordinate"),
		CreatedTime:     getTime(data, "created_time"),
		Duration:        getInt(data, "duration"),
		Elevation:       getFloatPtr(data, "elevation"),
		AvgSpeed:        getFloatPtr(data, "avg_speed"),
	}
	r.Distance, _ = getFloat(data, "distance")
	r.StravaActivityID = getString(data, "strava_activity_id")
	return r
}

// --- RideStatistics converters ---

func RideStatisticsToFirestore(s *types.RideStatistics) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":          s.UserID,
		"start_coordinate": s.StartCoordinate,
		"end_coordinate":   s.EndCoordinate,
		"start_address":    s.StartAddress,
		"end_address":      s.EndAddress,
		"created_time":     s.CreatedTime,
		"distance":         s.Distance,
		"duration":         s.Duration,
	}
	if s.Route != nil {
		m["route"] = routeToFirestore(s.Route)
	}
	// Optional stats are written as null when absent so reads don't
	// have to distinguish missing from unset.
	m["elevation"] = floatOrNil(s.Elevation)
	m["avg_speed"] = floatOrNil(s.AvgSpeed)
	m["avg_altitude"] = floatOrNil(s.AvgAltitude)
	m["max_altitude"] = floatOrNil(s.MaxAltitude)
	m["heat_consumption"] = floatOrNil(s.HeatConsumption)
	m["uphill_distance"] = floatOrNil(s.UphillDistance)
	m["downhill_distance"] = floatOrNil(s.DownhillDistance)
	m["flat_distance"] = floatOrNil(s.FlatDistance)
	if s.StravaActivityID != "" {
		m["strava_activity_id"] = s.StravaActivityID
	}
	return m
}

func floatOrNil(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func FirestoreToRideStatistics(id string, data map[string]interface{}) *types.RideStatistics {
	s := &types.RideStatistics{
		ID:               id,
		UserID:           getString(data, "user_id"),
		Route:            firestoreToRoute(data["route"]),
		StartCoordinate:  getString(data, "start_coordinate"),
		EndCoordinate:    getString(data, "end_coordinate"),
		StartAddress:     getString(data, "start_address"),
		EndAddress:       getString(data, "end_address"),
		CreatedTime:      getTime(data, "created_time"),
		Duration:         getInt(data, "duration"),
		Elevation:        getFloatPtr(data, "elevation"),
		AvgSpeed:         getFloatPtr(data, "avg_speed"),
		AvgAltitude:      getFloatPtr(data, "avg_altitude"),
		MaxAltitude:      getFloatPtr(data, "max_altitude"),
		HeatConsumption:  getFloatPtr(data, "heat_consumption"),
		UphillDistance:   getFloatPtr(data, "uphill_distance"),
		DownhillDistance: getFloatPtr(data, "downhill_distance"),
		FlatDistance:     getFloatPtr(data, "flat_distance"),
	}
	s.Distance, _ = getFloat(data, "distance")
	s.StravaActivityID = getString(data, "strava_activity_id")
	return s
}
