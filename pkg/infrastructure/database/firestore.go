package database

import (
	"context"

	"cloud.google.com/go/firestore"

	storage "github.com/ridelink/server/pkg/storage/firestore"
	"github.com/ridelink/server/pkg/types"
)

// FirestoreAdapter provides database operations using Firestore
// It wraps our typed storage client
type FirestoreAdapter struct {
	storage *storage.Client
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		storage: storage.NewClient(client),
	}
}

func (a *FirestoreAdapter) GetUser(ctx context.Context, id string) (*types.User, error) {
	return a.storage.Users().Doc(id).Get(ctx)
}

func (a *FirestoreAdapter) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.Users().Doc(id).Update(ctx, data)
}

func (a *FirestoreAdapter) FindUserByAthleteID(ctx context.Context, athleteID string) (*types.User, error) {
	return a.storage.Users().FindFirst(ctx, "strava.athlete_id", "==", athleteID)
}

func (a *FirestoreAdapter) GetRideRecord(ctx context.Context, id string) (*types.RideRecord, error) {
	return a.storage.RideRecords().Doc(id).Get(ctx)
}

func (a *FirestoreAdapter) UpdateRideRecord(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.RideRecords().Doc(id).Update(ctx, data)
}

func (a *FirestoreAdapter) GetRideStatistics(ctx context.Context, id string) (*types.RideStatistics, error) {
	return a.storage.RideStatistics().Doc(id).Get(ctx)
}

func (a *FirestoreAdapter) UpdateRideStatistics(ctx context.Context, id string, data map[string]interface{}) error {
	return a.storage.RideStatistics().Doc(id).Update(ctx, data)
}

func (a *FirestoreAdapter) CreateRideStatistics(ctx context.Context, stats *types.RideStatistics) error {
	return a.storage.RideStatistics().Doc(stats.ID).Set(ctx, stats)
}

func (a *FirestoreAdapter) FindRideStatisticsByActivityID(ctx context.Context, userID, activityID string) (*types.RideStatistics, error) {
	return a.storage.RideStatistics().FindFirstWhere(ctx, []storage.Condition{
		{Path: "strava_activity_id", Op: "==", Value: activityID},
		{Path: "user_id", Op: "==", Value: userID},
	})
}
