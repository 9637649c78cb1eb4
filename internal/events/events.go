// Package events publishes domain events about messages to a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types.
const (
	TypeMessageCreated = "message.created"
	TypeMessagesSeen   = "messages.seen"
)

// Publisher delivers an encoded event. partitionKey keeps events of one
// conversation ordered.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// MessageCreated is emitted after a message is committed.
type MessageCreated struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	RecipientID    string    `json:"recipientId"`
	HasMedia       bool      `json:"hasMedia"`
	PostID         string    `json:"postId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MessagesSeen is emitted when a viewer read a conversation.
type MessagesSeen struct {
	ConversationID string    `json:"conversationId"`
	ViewerID       string    `json:"viewerId"`
	Updated        int64     `json:"updated"`
	SeenAt         time.Time `json:"seenAt"`
}

// PublishJSON encodes v and publishes it under eventType.
func PublishJSON(ctx context.Context, p Publisher, eventType, partitionKey string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	if err := p.Publish(ctx, eventType, payload, partitionKey); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte, string) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
