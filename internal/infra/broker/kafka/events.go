package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainchat "studenthelper/internal/domain/chat"
)

// MessageEvents publishes chat events for other devserver consumers.
// Publishing is best effort; a broker failure never fails the request
// that produced the event.
type MessageEvents struct {
	Producer    *Producer
	TopicPrefix string
	Logger      *slog.Logger
}

// MessageSent emits a message.sent.v1 event keyed by sender.
func (e *MessageEvents) MessageSent(ctx context.Context, msg domainchat.StoredMessage) {
	if e == nil || e.Producer == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            "message.sent.v1",
		"source":          "app://studenthelper",
		"time":            time.Now().UTC(),
		"datacontenttype": "application/json",
		"data": map[string]any{
			"message_id":  msg.ID,
			"sender_id":   msg.SenderID,
			"receiver_id": msg.ReceiverID,
			"created_at":  msg.CreatedAt,
		},
	})
	if err != nil {
		e.logError("event encode failed", err)
		return
	}
	topic := e.TopicPrefix + "message.events.v1"
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	if err := e.Producer.Publish(ctx, topic, msg.SenderID, payload, headers); err != nil {
		e.logError("event publish failed", err)
	}
}

func (e *MessageEvents) logError(msg string, err error) {
	if e.Logger != nil {
		e.Logger.Error(msg, "error", err)
	}
}
