package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes terminal workflow transitions to NATS for
// the user-facing notification service.
//
// Subject convention: notifications.warranty.<event_type>
// Event types: claim_approved, claim_rejected, claim_completed
//
// All publish operations are non-fatal: errors are logged but never
// propagated, so a notification failure can never roll back a state
// transition.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType  string         `json:"event_type"`
	ClaimID    string         `json:"claim_id"`
	CustomerID string         `json:"customer_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. conn may be nil, in which case publishing is a no-op.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishClaimEvent publishes a terminal claim transition.
// Subject: notifications.warranty.<eventType>
func (p *NotificationPublisher) PublishClaimEvent(eventType, claimID, customerID, actorID string, payload map[string]any) {
	if p == nil || p.conn == nil {
		return
	}

	event := &NotificationEvent{
		EventType:  eventType,
		ClaimID:    claimID,
		CustomerID: customerID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.warranty.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("claim_id", claimID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("claim_id", claimID).
		Msg("notification: event published")
}
