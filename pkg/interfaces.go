package shared

import (
	"context"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/ridelink/server/pkg/types"
)

// --- Persistence Interfaces ---

// Database is the narrow CRUD surface this subsystem consumes. The
// store itself (schema, indexes, migrations) is an external
// collaborator; find methods return (nil, nil) when nothing matches.
type Database interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
	UpdateUser(ctx context.Context, id string, data map[string]interface{}) error
	// FindUserByAthleteID resolves the local account linked to a Strava
	// athlete id (webhook owner_id).
	FindUserByAthleteID(ctx context.Context, athleteID string) (*types.User, error)

	GetRideRecord(ctx context.Context, id string) (*types.RideRecord, error)
	UpdateRideRecord(ctx context.Context, id string, data map[string]interface{}) error

	GetRideStatistics(ctx context.Context, id string) (*types.RideStatistics, error)
	UpdateRideStatistics(ctx context.Context, id string, data map[string]interface{}) error
	CreateRideStatistics(ctx context.Context, stats *types.RideStatistics) error
	// FindRideStatisticsByActivityID is the webhook dedup check: has
	// this external activity already been imported for this user?
	FindRideStatisticsByActivityID(ctx context.Context, userID, activityID string) (*types.RideStatistics, error)
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}
