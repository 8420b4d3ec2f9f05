package shared

const (
	ProjectID = "ridelink-project" // Can be overridden by env var in main if needed

	TopicActivityUploaded = "topic-activity-uploaded"
	TopicActivitySynced   = "topic-activity-synced"

	CollectionUsers          = "users"
	CollectionRideRecords    = "ride_records"
	CollectionRideStatistics = "ride_statistics"

	// SportTypeRide is the Strava sport category this service syncs.
	// Activities of any other sport type are ignored on import.
	SportTypeRide = "Ride"
)
