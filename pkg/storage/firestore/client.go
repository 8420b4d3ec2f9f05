package firestore

import (
	"cloud.google.com/go/firestore"

	shared "github.com/ridelink/server/pkg"
	"github.com/ridelink/server/pkg/types"
)

type Client struct {
	fs *firestore.Client
}

func NewClient(client *firestore.Client) *Client {
	return &Client{fs: client}
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) Users() *Collection[types.User] {
	return &Collection[types.User]{
		Ref:           c.fs.Collection(shared.CollectionUsers),
		ToFirestore:   UserToFirestore,
		FromFirestore: FirestoreToUser,
	}
}

func (c *Client) RideRecords() *Collection[types.RideRecord] {
	return &Collection[types.RideRecord]{
		Ref:           c.fs.Collection(shared.CollectionRideRecords),
		ToFirestore:   RideRecordToFirestore,
		FromFirestore: FirestoreToRideRecord,
	}
}

func (c *Client) RideStatistics() *Collection[types.RideStatistics] {
	return &Collection[types.RideStatistics]{
		Ref:           c.fs.Collection(shared.CollectionRideStatistics),
		ToFirestore:   RideStatisticsToFirestore,
		FromFirestore: FirestoreToRideStatistics,
	}
}
