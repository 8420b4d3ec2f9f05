// Package strava is a typed client for the Strava v3 API surface this
// service uses: file uploads, upload polling, activity and stream reads,
// and push subscription management.
package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	httputil "github.com/ridelink/server/pkg/infrastructure/http"
)

// DefaultBaseURL is the production Strava API root.
const DefaultBaseURL = "https://www.strava.com/api/v3"

// Client calls the Strava v3 API. The injected http.Client is expected
// to carry authentication (bearer transport for athlete-scoped calls);
// subscription endpoints authenticate with application credentials
// passed per call instead.
type Client struct {
	// BaseURL can be pointed at a test server.
	BaseURL string

	httpClient *http.Client
}

// NewClient creates a Strava API client. A nil httpClient gets a plain
// client with a timeout, which is suitable for subscription management.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		httpClient: httpClient,
	}
}

// UploadInput describes a track file upload.
type UploadInput struct {
	Filename    string
	Name        string
	Description string
	SportType   string
	DataType    string // "gpx"
	Data        []byte
}

// UploadStatus is Strava's view of an async upload. ActivityID stays
// zero until server-side processing finishes; Error is non-empty when
// processing failed (duplicates included).
type UploadStatus struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Error      string `json:"error"`
	Status     string `json:"status"`
	ActivityID int64  `json:"activity_id"`
}

// Activity is the summary representation of a Strava activity.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	Calories           *float64  `json:"calories"`
	StartDate          time.Time `json:"start_date"`
	StartLatLng        []float64 `json:"start_latlng"`
	EndLatLng          []float64 `json:"end_latlng"`
}

// StreamSet holds the keyed streams this service reads. Any stream the
// activity does not carry is nil.
type StreamSet struct {
	LatLng   *LatLngStream `json:"latlng"`
	Altitude *FloatStream  `json:"altitude"`
	Time     *IntStream    `json:"time"`
}

// LatLngStream is a sequence of [lat, lng] pairs.
type LatLngStream struct {
	Data [][]float64 `json:"data"`
}

// FloatStream is a sequence of float samples (altitude in meters).
type FloatStream struct {
	Data []float64 `json:"data"`
}

// IntStream is a sequence of integer samples (seconds from start).
type IntStream struct {
	Data []int `json:"data"`
}

// Subscription is a registered push subscription.
type Subscription struct {
	ID          int64  `json:"id"`
	CallbackURL string `json:"callback_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// UploadGPX submits a track file. Strava processes uploads
// asynchronously; poll GetUpload with the returned ID.
func (c *Client) UploadGPX(ctx context.Context, in UploadInput) (*UploadStatus, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	dataType := in.DataType
	if dataType == "" {
		dataType = "gpx"
	}
	filename := in.Filename
	if filename == "" {
		filename = "ride.gpx"
	}

	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := fw.Write(in.Data); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	fields := map[string]string{
		"name":        in.Name,
		"description": in.Description,
		"data_type":   dataType,
		"sport_type":  in.SportType,
	}
	for field, value := range fields {
		if value == "" {
			continue
		}
		if err := w.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/uploads", &buf)
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var status UploadStatus
	if err := c.do(req, &status); err != nil {
		return nil, fmt.Errorf("upload track file: %w", err)
	}
	return &status, nil
}

// GetUpload fetches the current state of an async upload.
func (c *Client) GetUpload(ctx context.Context, uploadID int64) (*UploadStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/uploads/%d", c.BaseURL, uploadID), nil)
	if err != nil {
		return nil, fmt.Errorf("create upload status request: %w", err)
	}
	var status UploadStatus
	if err := c.do(req, &status); err != nil {
		return nil, fmt.Errorf("get upload %d: %w", uploadID, err)
	}
	return &status, nil
}

// GetActivity fetches a single activity summary.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/activities/%d", c.BaseURL, activityID), nil)
	if err != nil {
		return nil, fmt.Errorf("create activity request: %w", err)
	}
	var activity Activity
	if err := c.do(req, &activity); err != nil {
		return nil, fmt.Errorf("get activity %d: %w", activityID, err)
	}
	return &activity, nil
}

// GetStreams fetches the latlng, altitude and time streams for an
// activity. Activities recorded without GPS have no streams; that case
// returns (nil, nil) so callers can fall back to summary fields.
func (c *Client) GetStreams(ctx context.Context, activityID int64) (*StreamSet, error) {
	u := fmt.Sprintf("%s/activities/%d/streams?keys=latlng,altitude,time&key_by_type=true",
		c.BaseURL, activityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create streams request: %w", err)
	}
	var streams StreamSet
	if err := c.do(req, &streams); err != nil {
		if he, ok := httputil.AsHTTPError(err); ok && he.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get streams for activity %d: %w", activityID, err)
	}
	return &streams, nil
}

// CreateSubscription registers a webhook callback with Strava. Strava
// synchronously calls back the URL with a verification challenge before
// this returns.
func (c *Client) CreateSubscription(ctx context.Context, clientID, clientSecret, callbackURL, verifyToken string) (*Subscription, error) {
	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"callback_url":  {callbackURL},
		"verify_token":  {verifyToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/push_subscriptions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create subscription request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	return &sub, nil
}

// ListSubscriptions returns the application's registered subscriptions.
// Strava allows at most one per application.
func (c *Client) ListSubscriptions(ctx context.Context, clientID, clientSecret string) ([]Subscription, error) {
	u := fmt.Sprintf("%s/push_subscriptions?client_id=%s&client_secret=%s",
		c.BaseURL, url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create subscription list request: %w", err)
	}
	var subs []Subscription
	if err := c.do(req, &subs); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes a registered subscription.
func (c *Client) DeleteSubscription(ctx context.Context, clientID, clientSecret string, subscriptionID int64) error {
	u := fmt.Sprintf("%s/push_subscriptions/%d?client_id=%s&client_secret=%s",
		c.BaseURL, subscriptionID, url.QueryEscape(clientID), url.QueryEscape(clientSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create subscription delete request: %w", err)
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete push subscription %d: %w", subscriptionID, err)
	}
	return nil
}

// do executes the request, surfaces non-2xx responses as *httputil.HTTPError,
// and decodes the body into out when out is non-nil.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
