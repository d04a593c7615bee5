package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/benty101/Meddycare-sub000/internal/model"
	"github.com/benty101/Meddycare-sub000/internal/store"
)

// PushSender sends one web push notification. Split out so tests can
// substitute the network call.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real sender backed by the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WebPushSink notifies the owning family's browsers about matching events.
type WebPushSink struct {
	store   store.Store
	options *webpush.Options
	sender  PushSender
	log     *zap.Logger
}

// NewWebPushSink creates a web push event sink.
func NewWebPushSink(s store.Store, options *webpush.Options, log *zap.Logger) *WebPushSink {
	return &WebPushSink{store: s, options: options, sender: &WebPushSender{}, log: log}
}

type pushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Event string `json:"event"`
}

// Publish resolves the family from the event payload and pushes to every
// subscription that family has registered. Expired subscriptions (HTTP 410)
// are deleted on sight, as browsers rotate endpoints.
func (s *WebPushSink) Publish(ctx context.Context, event model.OutboxEvent) error {
	var payload struct {
		FamilyID   string `json:"familyId"`
		MatchCount int    `json:"matchCount"`
	}
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		return fmt.Errorf("malformed payload on event %d: %w", event.ID, err)
	}
	if payload.FamilyID == "" {
		// Not a family-scoped event; nothing to push.
		return nil
	}

	subs, err := s.store.PushSubscriptionsForFamily(ctx, payload.FamilyID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	message := pushMessage{Event: event.EventType}
	switch event.EventType {
	case model.EventRequestMatched:
		message.Title = "Carers found"
		message.Body = fmt.Sprintf("We found %d carers for your care request.", payload.MatchCount)
	case model.EventPlacementCreated:
		message.Title = "Carer hired"
		message.Body = "Your placement is confirmed. You can now set up the care plan."
	case model.EventMatchHired:
		// placement.created carries the family-facing notification.
		return nil
	default:
		return nil
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	for _, sub := range subs {
		s.send(ctx, sub, body)
	}
	return nil
}

func (s *WebPushSink) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := s.sender.Send(payload, wpSub, s.options)
	if err != nil {
		s.log.Warn("web push send failed", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		s.log.Info("deleting expired push subscription", zap.String("endpoint", sub.Endpoint))
		if err := s.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			s.log.Warn("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
