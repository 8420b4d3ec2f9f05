package types

import "time"

// RideSourceKind names the two local ride record variants.
type RideSourceKind string

const (
	KindRecord     RideSourceKind = "record"
	KindStatistics RideSourceKind = "statistics"
)

// RideSource is the common field-accessor view over the two ride record
// variants. The upload path works exclusively against this interface so
// the variant is resolved once at the API boundary instead of being
// re-branched on throughout.
type RideSource interface {
	SourceID() string
	SourceKind() RideSourceKind
	Owner() string
	RoutePoints() []Coordinate
	StartCoord() string
	EndCoord() string
	StartedAt() time.Time
	DistanceMeters() float64
	DurationSeconds() int
	ElevationGain() *float64
	ActivityID() string
}

func (r *RideRecord) SourceID() string            { return r.ID }
func (r *RideRecord) SourceKind() RideSourceKind  { return KindRecord }
func (r *RideRecord) Owner() string               { return r.UserID }
func (r *RideRecord) RoutePoints() []Coordinate   { return r.Route }
func (r *RideRecord) StartCoord() string          { return r.StartCoordinate }
func (r *RideRecord) EndCoord() string            { return r.EndCoordinate }
func (r *RideRecord) StartedAt() time.Time        { return r.CreatedTime }
func (r *RideRecord) DistanceMeters() float64     { return r.Distance }
func (r *RideRecord) DurationSeconds() int        { return r.Duration }
func (r *RideRecord) ElevationGain() *float64     { return r.Elevation }
func (r *RideRecord) ActivityID() string          { return r.StravaActivityID }

func (s *RideStatistics) SourceID() string           { return s.ID }
func (s *RideStatistics) SourceKind() RideSourceKind { return KindStatistics }
func (s *RideStatistics) Owner() string              { return s.UserID }
func (s *RideStatistics) RoutePoints() []Coordinate  { return s.Route }
func (s *RideStatistics) StartCoord() string         { return s.StartCoordinate }
func (s *RideStatistics) EndCoord() string           { return s.EndCoordinate }
func (s *RideStatistics) StartedAt() time.Time       { return s.CreatedTime }
func (s *RideStatistics) DistanceMeters() float64    { return s.Distance }
func (s *RideStatistics) DurationSeconds() int       { return s.Duration }
func (s *RideStatistics) ElevationGain() *float64    { return s.Elevation }
func (s *RideStatistics) ActivityID() string         { return s.StravaActivityID }
