package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// Notification event types.
const (
	EventDistributionSubmitted = "distribution_submitted"
	EventApprovalRequired      = "approval_required"
	EventDistributionApproved  = "distribution_approved"
	EventDistributionRejected  = "distribution_rejected"
	EventDistributionReturned  = "distribution_returned"
	EventDistributionCompleted = "distribution_completed"
)

// NotificationPublisher publishes approval workflow events to NATS JetStream
// for consumption by the notifications service.
//
// Subject convention: <prefix>.<event_type>, e.g.
// notifications.distributions.approval_required
//
// All publish operations are non-fatal: errors are logged but never propagated
// to the caller, so notification failures never interrupt approval operations.
type NotificationPublisher struct {
	publisher EventPublisher
	prefix    string
	log       zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	EntityID     string         `json:"entity_id"`
	ActorID      string         `json:"actor_id"`
	Recipients   []string       `json:"recipients"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher. A nil transport turns every
// publish into a no-op.
func NewNotificationPublisher(publisher EventPublisher, prefix string, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{publisher: publisher, prefix: prefix, log: log}
}

// PublishDistributionEvent publishes a distribution approval event. fundID is
// sent as the entity id.
func (p *NotificationPublisher) PublishDistributionEvent(ctx context.Context, eventType, distributionID, fundID, actorID string, recipients []string, payload map[string]any) {
	if p == nil || p.publisher == nil {
		return
	}
	if len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		EntityID:     fundID,
		ActorID:      actorID,
		Recipients:   recipients,
		ResourceType: "distribution",
		ResourceID:   distributionID,
		IsActionable: eventType == EventApprovalRequired || eventType == EventDistributionReturned,
		Severity:     "info",
		Category:     "distribution_approval",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, eventType)
	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("distribution_id", distributionID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("distribution_id", distributionID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
