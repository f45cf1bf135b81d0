package handlers

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/campusops/placement/modules/placement/domain/aggregates/execution"
	"github.com/campusops/placement/pkg/eventbus"
	"github.com/campusops/placement/pkg/outbox"
)

// NotificationHandler consumes execution-result messages delivered by the
// outbox relay. Delivery is fire and forget from the engine's point of view:
// the commit already happened, and a handler error only triggers redelivery.
type NotificationHandler struct {
	log *logrus.Logger
}

func RegisterNotificationHandler(bus eventbus.EventBus, log *logrus.Logger) *NotificationHandler {
	h := &NotificationHandler{log: log}
	bus.Subscribe(h.onOutboxMessage)
	return h
}

func (h *NotificationHandler) onOutboxMessage(meta *outbox.Meta, topic string, payload json.RawMessage) error {
	if topic != execution.NotificationTopic {
		return nil
	}
	var n execution.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return err
	}
	h.log.WithFields(logrus.Fields{
		"event_id":      meta.EventID,
		"batch_id":      n.BatchID,
		"assignment_id": n.AssignmentID,
		"site_id":       n.SiteID,
		"outcome":       n.Outcome,
		"actor":         n.Actor,
	}).Info("placement result notification")
	return nil
}
