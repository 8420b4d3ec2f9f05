package mocks

import (
	"context"
	"fmt"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/ridelink/server/pkg/types"
)

// --- Mock Database ---
type MockDatabase struct {
	GetUserFunc             func(ctx context.Context, id string) (*types.User, error)
	UpdateUserFunc          func(ctx context.Context, id string, data map[string]interface{}) error
	FindUserByAthleteIDFunc func(ctx context.Context, athleteID string) (*types.User, error)

	GetRideRecordFunc    func(ctx context.Context, id string) (*types.RideRecord, error)
	UpdateRideRecordFunc func(ctx context.Context, id string, data map[string]interface{}) error

	GetRideStatisticsFunc              func(ctx context.Context, id string) (*types.RideStatistics, error)
	UpdateRideStatisticsFunc           func(ctx context.Context, id string, data map[string]interface{}) error
	CreateRideStatisticsFunc           func(ctx context.Context, stats *types.RideStatistics) error
	FindRideStatisticsByActivityIDFunc func(ctx context.Context, userID, activityID string) (*types.RideStatistics, error)
}

func (m *MockDatabase) GetUser(ctx context.Context, id string) (*types.User, error) {
	if m.GetUserFunc != nil {
		return m.GetUserFunc(ctx, id)
	}
	return nil, fmt.Errorf("user not found")
}
func (m *MockDatabase) UpdateUser(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(ctx, id, data)
	}
	return nil
}
func (m *MockDatabase) FindUserByAthleteID(ctx context.Context, athleteID string) (*types.User, error) {
	if m.FindUserByAthleteIDFunc != nil {
		return m.FindUserByAthleteIDFunc(ctx, athleteID)
	}
	return nil, nil
}
func (m *MockDatabase) GetRideRecord(ctx context.Context, id string) (*types.RideRecord, error) {
	if m.GetRideRecordFunc != nil {
		return m.GetRideRecordFunc(ctx, id)
	}
	return nil, fmt.Errorf("ride record not found")
}
func (m *MockDatabase) UpdateRideRecord(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateRideRecordFunc != nil {
		return m.UpdateRideRecordFunc(ctx, id, data)
	}
	return nil
}
func (m *MockDatabase) GetRideStatistics(ctx context.Context, id string) (*types.RideStatistics, error) {
	if m.GetRideStatisticsFunc != nil {
		return m.GetRideStatisticsFunc(ctx, id)
	}
	return nil, fmt.Errorf("ride statistics not found")
}
func (m *MockDatabase) UpdateRideStatistics(ctx context.Context, id string, data map[string]interface{}) error {
	if m.UpdateRideStatisticsFunc != nil {
		return m.UpdateRideStatisticsFunc(ctx, id, data)
	}
	return nil
}
func (m *MockDatabase) CreateRideStatistics(ctx context.Context, stats *types.RideStatistics) error {
	if m.CreateRideStatisticsFunc != nil {
		return m.CreateRideStatisticsFunc(ctx, stats)
	}
	return nil
}
func (m *MockDatabase) FindRideStatisticsByActivityID(ctx context.Context, userID, activityID string) (*types.RideStatistics, error) {
	if m.FindRideStatisticsByActivityIDFunc != nil {
		return m.FindRideStatisticsByActivityIDFunc(ctx, userID, activityID)
	}
	return nil, nil
}

// --- Mock Publisher ---
type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
	Published             []event.Event
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	m.Published = append(m.Published, e)
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}
