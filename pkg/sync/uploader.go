// Package sync implements the Strava synchronization flows: uploading
// local rides as track files and importing Strava activities back into
// local records.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	shared "github.com/ridelink/server/pkg"
	"github.com/ridelink/server/pkg/gpx"
	"github.com/ridelink/server/pkg/infrastructure/pubsub"
	"github.com/ridelink/server/pkg/infrastructure/sentry"
	"github.com/ridelink/server/pkg/integrations/strava"
	"github.com/ridelink/server/pkg/types"
)

var (
	// ErrAlreadyLinked means the ride already carries a Strava activity
	// id and must not be uploaded again.
	ErrAlreadyLinked = errors.New("ride already linked to a strava activity")

	// ErrNoRouteData means the ride has neither route points nor a
	// parseable start coordinate, so no track file can be produced.
	ErrNoRouteData = errors.New("ride has no usable route data")

	// ErrUploadFailed means Strava accepted the file but rejected it
	// during processing (malformed or duplicate).
	ErrUploadFailed = errors.New("strava rejected the upload")
)

const (
	defaultPollAttempts = 5
	defaultPollInterval = 2 * time.Second

	// StatusSynced and StatusProcessing are the terminal and
	// non-terminal outcomes of an upload as reported to callers.
	StatusSynced     = "synced"
	StatusProcessing = "processing"
)

// Uploader drives the local-ride to Strava-activity flow: encode the
// route as GPX, submit it, poll the async upload until it resolves, and
// link the resulting activity id back onto the ride.
type Uploader struct {
	DB  shared.Database
	Pub shared.Publisher
	Log *slog.Logger

	// ClientFor returns an authenticated API client for the user.
	ClientFor func(userID string) *strava.Client

	// PollAttempts and PollInterval bound how long Upload waits for
	// Strava's async processing. Zero values fall back to defaults.
	PollAttempts int
	PollInterval time.Duration
}

// UploadOutcome is the result of a completed (or still-processing)
// upload. PersistWarning is set when the activity was created on Strava
// but the local link write failed; that failure is reported, not
// returned as an error, because the remote side effect already
// happened.
type UploadOutcome struct {
	UploadID       int64  `json:"uploadId"`
	ActivityID     string `json:"activityId,omitempty"`
	Status         string `json:"status"`
	PersistWarning string `json:"persistWarning,omitempty"`
}

// Upload pushes one ride to Strava. It returns ErrAlreadyLinked without
// any remote call when the ride is already synchronized, and
// ErrNoRouteData when no track file can be built.
func (u *Uploader) Upload(ctx context.Context, src types.RideSource) (*UploadOutcome, error) {
	if src.ActivityID() != "" {
		return nil, ErrAlreadyLinked
	}

	route, err := selectRoute(src)
	if err != nil {
		return nil, err
	}

	name := "Ride " + src.StartedAt().UTC().Format("2006-01-02 15:04")
	doc := gpx.Encode(gpx.TrackInput{
		Name:      name,
		Route:     route,
		StartTime: src.StartedAt(),
		Distance:  src.DistanceMeters(),
		Duration:  src.DurationSeconds(),
		Elevation: src.ElevationGain(),
	})

	client := u.ClientFor(src.Owner())
	status, err := client.UploadGPX(ctx, strava.UploadInput{
		Name:      name,
		SportType: shared.SportTypeRide,
		Data:      []byte(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("submit upload: %w", err)
	}

	u.Log.Info("Track file submitted", "ride_id", src.SourceID(), "upload_id", status.ID)

	status, err = u.poll(ctx, client, status)
	if err != nil {
		return nil, err
	}

	outcome := &UploadOutcome{UploadID: status.ID, Status: StatusProcessing}
	if status.ActivityID == 0 {
		// Still processing after the poll budget. The caller can check
		// again later via the upload status endpoint.
		u.Log.Info("Upload still processing after poll budget",
			"ride_id", src.SourceID(), "upload_id", status.ID)
		return outcome, nil
	}

	activityID := strconv.FormatInt(status.ActivityID, 10)
	outcome.ActivityID = activityID
	outcome.Status = StatusSynced

	if err := u.linkActivity(ctx, src, activityID); err != nil {
		// The Strava activity exists; failing the whole call now would
		// invite a duplicate upload on retry. Surface as a warning.
		outcome.PersistWarning = fmt.Sprintf("activity %s created but local link failed: %v", activityID, err)
		u.Log.Error("Failed to persist activity link", "ride_id", src.SourceID(), "error", err)
		sentry.CaptureException(err, map[string]interface{}{
			"ride_id":     src.SourceID(),
			"activity_id": activityID,
		}, u.Log)
	}

	u.publishUploaded(ctx, src, activityID)
	return outcome, nil
}

// poll re-reads the upload until it resolves to an activity, fails, or
// the attempt budget runs out. The initial response counts as the first
// observation.
func (u *Uploader) poll(ctx context.Context, client *strava.Client, status *strava.UploadStatus) (*strava.UploadStatus, error) {
	attempts := u.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	interval := u.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for i := 0; ; i++ {
		if status.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrUploadFailed, status.Error)
		}
		if status.ActivityID != 0 || i >= attempts {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		next, err := client.GetUpload(ctx, status.ID)
		if err != nil {
			return nil, fmt.Errorf("poll upload %d: %w", status.ID, err)
		}
		status = next
	}
}

func (u *Uploader) linkActivity(ctx context.Context, src types.RideSource, activityID string) error {
	data := map[string]interface{}{"strava_activity_id": activityID}
	switch src.SourceKind() {
	case types.KindStatistics:
		return u.DB.UpdateRideStatistics(ctx, src.SourceID(), data)
	default:
		return u.DB.UpdateRideRecord(ctx, src.SourceID(), data)
	}
}

func (u *Uploader) publishUploaded(ctx context.Context, src types.RideSource, activityID string) {
	e, err := pubsub.NewCloudEvent(pubsub.EventSourceUploader, pubsub.EventTypeActivityUploaded, map[string]string{
		"userId":     src.Owner(),
		"rideId":     src.SourceID(),
		"rideKind":   string(src.SourceKind()),
		"activityId": activityID,
	})
	if err != nil {
		u.Log.Error("Failed to build uploaded event", "error", err)
		return
	}
	if _, err := u.Pub.PublishCloudEvent(ctx, shared.TopicActivityUploaded, e); err != nil {
		u.Log.Error("Failed to publish uploaded event", "error", err)
	}
}

// selectRoute picks the coordinates for the track file: the recorded
// route when present, otherwise the start coordinate plus the end
// coordinate when it differs from the start. Identical start and end
// collapse to a single point rather than a zero-length segment pair.
func selectRoute(src types.RideSource) ([]types.Coordinate, error) {
	if pts := src.RoutePoints(); len(pts) > 0 {
		return pts, nil
	}

	start, ok := gpx.ParseCoordinate(src.StartCoord())
	if !ok {
		return nil, ErrNoRouteData
	}
	route := []types.Coordinate{start}
	if end, ok := gpx.ParseCoordinate(src.EndCoord()); ok && (end.Lat != start.Lat || end.Lng != start.Lng) {
		route = append(route, end)
	}
	return route, nil
}
