// Package types holds the domain records shared across the sync service.
package types

import "time"

// Coordinate is a single geographic point on a ride route.
type Coordinate struct {
	Lat       float64
	Lng       float64
	Elevation *float64
}

// StravaCredential is the per-user OAuth credential record for Strava.
// AccessToken and RefreshToken are issued as a pair: if one is set, the
// other must be too. All fields are cleared when a refresh is rejected
// by Strava, forcing the user to re-authorize.
type StravaCredential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	AthleteID    string
}

// Connected reports whether the user has completed the authorization
// handshake and still holds a refresh token.
func (c *StravaCredential) Connected() bool {
	return c != nil && c.AccessToken != "" && c.RefreshToken != ""
}

// User is the local account entity. Only the fields this subsystem
// touches are modeled; the rest of the user record lives behind the
// Database interface.
type User struct {
	ID        string
	Email     string
	Strava    *StravaCredential
	CreatedAt time.Time
}

// RideRecord is a free-form recorded ride route.
type RideRecord struct {
	ID              string
	UserID          string
	Route           []Coordinate
	StartCoordinate string // "lat,lng"
	EndCoordinate   string // "lat,lng"
	CreatedTime     time.Time
	Distance        float64 // meters
	Duration        int     // seconds
	Elevation       *float64
	AvgSpeed        *float64 // m/s
	// StravaActivityID is write-once: set when the record has been
	// synchronized with Strava, never overwritten afterwards.
	StravaActivityID string
}

// RideStatistics is a user-entered or imported ride statistics record.
// Functionally identical to RideRecord for synchronization purposes,
// with extra derived stats.
type RideStatistics struct {
	ID              string
	UserID          string
	Route           []Coordinate
	StartCoordinate string
	EndCoordinate   string
	StartAddress    string
	EndAddress      string
	CreatedTime     time.Time
	Distance        float64
	Duration        int
	Elevation       *float64
	AvgSpeed        *float64
	AvgAltitude     *float64
	MaxAltitude     *float64
	// HeatConsumption is calories burned, when the source supplies it.
	HeatConsumption *float64
	// Strava does not supply these in the import flow; they stay nil
	// rather than being fabricated.
	UphillDistance   *float64
	DownhillDistance *float64
	FlatDistance     *float64

	StravaActivityID string
}
