package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	shared "github.com/ridelink/server/pkg"
	"github.com/ridelink/server/pkg/infrastructure/pubsub"
	"github.com/ridelink/server/pkg/integrations/strava"
	"github.com/ridelink/server/pkg/types"
)

// ErrUnsupportedSport means the Strava activity is not a ride and is
// skipped by the import flow.
var ErrUnsupportedSport = errors.New("activity sport type is not supported")

// Importer pulls a Strava activity into a local ride statistics record.
// It is the consumer side of webhook events but can also be invoked
// directly.
type Importer struct {
	DB  shared.Database
	Pub shared.Publisher
	Log *slog.Logger

	// ClientFor returns an authenticated API client for the user.
	ClientFor func(userID string) *strava.Client
}

// ImportActivity fetches one activity and creates a ride statistics
// record for it. The operation is idempotent on (user, activity): if a
// record already exists it is returned unchanged with no writes.
// Non-ride activities return ErrUnsupportedSport.
func (im *Importer) ImportActivity(ctx context.Context, userID string, activityID int64) (*types.RideStatistics, error) {
	activityKey := strconv.FormatInt(activityID, 10)

	existing, err := im.DB.FindRideStatisticsByActivityID(ctx, userID, activityKey)
	if err != nil {
		return nil, fmt.Errorf("check existing import: %w", err)
	}
	if existing != nil {
		im.Log.Info("Activity already imported", "user_id", userID, "activity_id", activityKey)
		return existing, nil
	}

	client := im.ClientFor(userID)
	activity, err := client.GetActivity(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("fetch activity: %w", err)
	}

	if activity.Type != shared.SportTypeRide && activity.SportType != shared.SportTypeRide {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSport, sportLabel(activity))
	}

	streams, err := client.GetStreams(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("fetch streams: %w", err)
	}

	stats := buildStatistics(userID, activityKey, activity, streams)
	if err := im.DB.CreateRideStatistics(ctx, stats); err != nil {
		return nil, fmt.Errorf("persist imported ride: %w", err)
	}

	im.Log.Info("Activity imported", "user_id", userID, "activity_id", activityKey, "ride_id", stats.ID)
	im.publishSynced(ctx, stats)
	return stats, nil
}

func sportLabel(a *strava.Activity) string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// buildStatistics maps a Strava activity plus its streams onto the
// local record shape.
func buildStatistics(userID, activityKey string, a *strava.Activity, streams *strava.StreamSet) *types.RideStatistics {
	route := reconstructRoute(a, streams)

	stats := &types.RideStatistics{
		ID:               uuid.NewString(),
		UserID:           userID,
		Route:            route,
		CreatedTime:      a.StartDate,
		Distance:         a.Distance,
		Duration:         a.MovingTime,
		StravaActivityID: activityKey,
	}
	if stats.Duration == 0 {
		stats.Duration = a.ElapsedTime
	}
	if a.TotalElevationGain > 0 {
		gain := a.TotalElevationGain
		stats.Elevation = &gain
	}
	if a.AverageSpeed > 0 {
		speed := a.AverageSpeed
		stats.AvgSpeed = &speed
	}
	stats.HeatConsumption = a.Calories

	start, hasStart := latLngPair(a.StartLatLng)
	end, hasEnd := latLngPair(a.EndLatLng)
	switch {
	case hasStart:
		stats.StartCoordinate = formatCoordinate(start)
		if hasEnd {
			stats.EndCoordinate = formatCoordinate(end)
		} else {
			stats.EndCoordinate = stats.StartCoordinate
		}
	case len(route) > 0:
		stats.StartCoordinate = formatCoordinate(route[0])
		stats.EndCoordinate = formatCoordinate(route[len(route)-1])
	}

	if streams != nil && streams.Altitude != nil && len(streams.Altitude.Data) > 0 {
		avg, max := altitudeSummary(streams.Altitude.Data)
		stats.AvgAltitude = &avg
		stats.MaxAltitude = &max
	}

	// Uphill, downhill and flat distances are not derivable from the
	// summary or streams with any accuracy; they stay nil.
	return stats
}

// reconstructRoute builds the route from the latlng stream, pairing
// altitude samples by index, then overrides the endpoints with the
// summary start and end when Strava supplies them. Activities without
// streams get no route at all; the summary endpoints only inform the
// coordinate strings, never a synthesized track.
func reconstructRoute(a *strava.Activity, streams *strava.StreamSet) []types.Coordinate {
	if streams == nil || streams.LatLng == nil {
		return nil
	}

	var route []types.Coordinate
	for i, pair := range streams.LatLng.Data {
		if len(pair) < 2 {
			continue
		}
		pt := types.Coordinate{Lat: pair[0], Lng: pair[1]}
		if streams.Altitude != nil && i < len(streams.Altitude.Data) {
			ele := streams.Altitude.Data[i]
			pt.Elevation = &ele
		}
		route = append(route, pt)
	}
	if len(route) == 0 {
		return nil
	}

	// Summary endpoints are Strava's authoritative values; stream
	// samples can be clipped by privacy zones.
	if start, ok := latLngPair(a.StartLatLng); ok {
		route[0].Lat, route[0].Lng = start.Lat, start.Lng
	}
	if end, ok := latLngPair(a.EndLatLng); ok {
		last := len(route) - 1
		route[last].Lat, route[last].Lng = end.Lat, end.Lng
	}
	return route
}

func latLngPair(pair []float64) (types.Coordinate, bool) {
	if len(pair) < 2 {
		return types.Coordinate{}, false
	}
	return types.Coordinate{Lat: pair[0], Lng: pair[1]}, true
}

func altitudeSummary(samples []float64) (avg, max float64) {
	var sum float64
	max = samples[0]
	for _, s := range samples {
		sum += s
		if s > max {
			max = s
		}
	}
	return sum / float64(len(samples)), max
}

func formatCoordinate(pt types.Coordinate) string {
	return strconv.FormatFloat(pt.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(pt.Lng, 'f', -1, 64)
}

func (im *Importer) publishSynced(ctx context.Context, stats *types.RideStatistics) {
	e, err := pubsub.NewCloudEvent(pubsub.EventSourceImporter, pubsub.EventTypeActivitySynced, map[string]string{
		"userId":     stats.UserID,
		"rideId":     stats.ID,
		"activityId": stats.StravaActivityID,
	})
	if err != nil {
		im.Log.Error("Failed to build synced event", "error", err)
		return
	}
	if _, err := im.Pub.PublishCloudEvent(ctx, shared.TopicActivitySynced, e); err != nil {
		im.Log.Error("Failed to publish synced event", "error", err)
	}
}
