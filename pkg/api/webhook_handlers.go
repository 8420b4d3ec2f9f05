package api

import (
	"encoding/json"
	"net/http"

	"github.com/ridelink/server/pkg/infrastructure/sentry"
	ridesync "github.com/ridelink/server/pkg/sync"
)

// handleWebhookVerify answers Strava's subscription validation probe:
// echo the challenge when the verify token matches, 403 otherwise.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.Cfg.WebhookVerifyToken {
		s.Log.Warn("Webhook verification rejected", "mode", q.Get("hub.mode"))
		writeJSON(w, http.StatusForbidden, errorBody{Error: "verification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hub.challenge": q.Get("hub.challenge")})
}

// handleWebhookEvent ingests a push notification. The response is 200
// no matter what: Strava retries non-2xx deliveries and eventually
// disables the subscription, so failures are recorded out of band
// instead of being surfaced to Strava.
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	defer func() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}()

	var evt ridesync.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		s.Log.Warn("Undecodable webhook payload", "error", err)
		return
	}

	if err := s.Processor.Process(r.Context(), evt); err != nil {
		s.Log.Error("Webhook processing failed",
			"object_id", evt.ObjectID, "owner_id", evt.OwnerID, "error", err)
		sentry.CaptureException(err, map[string]interface{}{
			"object_id": evt.ObjectID,
			"owner_id":  evt.OwnerID,
		}, s.Log)
	}
}

// handleWebhookSubscribe registers this deployment's callback URL with
// Strava. Strava validates the callback synchronously, so the GET
// verification handler above must be reachable when this is called.
func (s *Server) handleWebhookSubscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := s.SubClient.CreateSubscription(r.Context(),
		s.Cfg.StravaClientID, s.Cfg.StravaClientSecret,
		s.Cfg.CallbackURL(), s.Cfg.WebhookVerifyToken)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Log.Info("Webhook subscription created", "subscription_id", sub.ID)
	writeJSON(w, http.StatusCreated, sub)
}

// handleWebhookSubscription reports the current subscription, if any.
func (s *Server) handleWebhookSubscription(w http.ResponseWriter, r *http.Request) {
	subs, err := s.SubClient.ListSubscriptions(r.Context(), s.Cfg.StravaClientID, s.Cfg.StravaClientSecret)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(subs) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subscription": subs[0]})
}
