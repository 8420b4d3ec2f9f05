package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	shared "github.com/ridelink/server/pkg"
)

// Event is a Strava webhook push notification.
type Event struct {
	ObjectType     string            `json:"object_type"` // "activity" or "athlete"
	ObjectID       int64             `json:"object_id"`
	AspectType     string            `json:"aspect_type"` // "create", "update", "delete"
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	EventTime      int64             `json:"event_time"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Processor screens webhook events and hands qualifying ones to the
// importer. Every drop is deliberate: Strava retries deliveries that do
// not get a 2xx, so unprocessable events must still succeed.
type Processor struct {
	DB       shared.Database
	Importer *Importer
	Log      *slog.Logger
}

// Process handles one webhook event. It only errors on real failures
// (lookup or import errors); events that simply do not apply are logged
// and dropped.
func (p *Processor) Process(ctx context.Context, evt Event) error {
	log := p.Log.With("object_type", evt.ObjectType, "object_id", evt.ObjectID,
		"aspect_type", evt.AspectType, "owner_id", evt.OwnerID)

	if evt.ObjectType != "activity" {
		log.Info("Ignoring non-activity event")
		return nil
	}
	if evt.AspectType != "create" {
		log.Info("Ignoring non-create event")
		return nil
	}

	athleteID := strconv.FormatInt(evt.OwnerID, 10)
	user, err := p.DB.FindUserByAthleteID(ctx, athleteID)
	if err != nil {
		return fmt.Errorf("resolve webhook owner: %w", err)
	}
	if user == nil {
		// Stale subscription or an athlete who revoked access.
		log.Info("No local account for athlete, dropping event")
		return nil
	}

	_, err = p.Importer.ImportActivity(ctx, user.ID, evt.ObjectID)
	if errors.Is(err, ErrUnsupportedSport) {
		log.Info("Dropping activity with unsupported sport", "reason", err.Error())
		return nil
	}
	return err
}
