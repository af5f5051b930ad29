package notify

import (
	"context"
	"strconv"
	"sync/atomic"

	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"

	"github.com/google/uuid"
)

const (
	// Topic carries every outbound notification; the delivery worker consumes
	// it and talks to the chat platform.
	Topic = "slotbook.notifications"

	// DLQTopic receives notifications that could not be written to Topic.
	DLQTopic = "slotbook.notifications.dlq"

	sourceService = "slotbook"
)

// Producer is the subset of the Kafka producer the notifier needs.
type Producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaNotifier struct {
	producer    Producer
	log         *logger.Logger
	adminChatID atomic.Int64
}

func NewKafkaNotifier(producer Producer, adminChatID int64, log *logger.Logger) Notifier {
	n := &kafkaNotifier{
		producer: producer,
		log:      log,
	}
	n.adminChatID.Store(adminChatID)
	return n
}

func (n *kafkaNotifier) NotifyUser(ctx context.Context, userID int64, event string, payload any) error {
	envelope := Envelope{
		Audience: AudienceUser,
		ChatID:   userID,
		Event:    event,
		Payload:  payload,
	}

	return n.publish(ctx, strconv.FormatInt(userID, 10), event, envelope)
}

func (n *kafkaNotifier) NotifyAdmin(ctx context.Context, event string, payload any) (string, error) {
	chatID := n.adminChatID.Load()
	messageRef := uuid.NewString()

	envelope := Envelope{
		Audience:   AudienceAdmin,
		ChatID:     chatID,
		Event:      event,
		MessageRef: messageRef,
		Payload:    payload,
	}

	if err := n.publish(ctx, strconv.FormatInt(chatID, 10), event, envelope); err != nil {
		return "", err
	}

	return messageRef, nil
}

func (n *kafkaNotifier) EditAdmin(ctx context.Context, messageRef string, event string, payload any) error {
	chatID := n.adminChatID.Load()

	envelope := Envelope{
		Audience: AudienceAdmin,
		ChatID:   chatID,
		Event:    event,
		EditRef:  messageRef,
		Payload:  payload,
	}

	return n.publish(ctx, strconv.FormatInt(chatID, 10), event, envelope)
}

func (n *kafkaNotifier) SetAdminChat(chatID int64) {
	n.adminChatID.Store(chatID)
	n.log.Info("Admin notification target changed", "chat_id", chatID)
}

func (n *kafkaNotifier) publish(ctx context.Context, key, event string, envelope Envelope) error {
	msg := kafka.NewMessage().
		WithKey(key).
		WithValue(envelope).
		WithEventType(event).
		WithSource(sourceService).
		WithSchemaVersion("1").
		Build()

	if err := n.producer.Publish(ctx, msg); err != nil {
		n.log.Error("Failed to publish notification",
			"event", event,
			"audience", envelope.Audience,
			"chat_id", envelope.ChatID,
			"error", err,
		)
		return err
	}

	return nil
}
