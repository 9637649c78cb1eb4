package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello    = "hello"
	InboundTypeSend     = "newMessage"
	InboundTypeMarkSeen = "markMessagesAsSeen"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage   = "newMessage"
	EventMessagesSeen = "messagesSeen"
	EventMessageSent  = "messageSent"
	EventReady        = "ready"
)

// HelloData authenticates a connection that did not pass ?token=.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// SendData asks the server to send a direct message.
// It doubles as the REST body of POST /api/messages.
type SendData struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message"`
	Image       string `json:"image,omitempty"`
	Video       string `json:"video,omitempty"`
}

// MarkSeenData marks a conversation as read by the caller.
// UserID is accepted for compatibility and ignored.
type MarkSeenData struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
}

// ShareData shares an existing post with another user.
type ShareData struct {
	PostID      string `json:"postId"`
	RecipientID string `json:"recipientId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is the wire form of a persisted chat message.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Image          string    `json:"img,omitempty"`
	Video          string    `json:"video,omitempty"`
	PostID         string    `json:"postId,omitempty"`
	Seen           bool      `json:"seen"`
	CreatedAt      time.Time `json:"createdAt"`
}

// LastMessage summarizes the newest message of a conversation.
type LastMessage struct {
	Text   string `json:"text"`
	Sender string `json:"sender"`
	Seen   bool   `json:"seen"`
}

// Participant is the other side of a conversation as shown in listings.
type Participant struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
	Online     bool   `json:"online"`
}

// Conversation is one entry of the conversations listing.
type Conversation struct {
	ID           string        `json:"_id"`
	Participants []Participant `json:"participants"`
	LastMessage  LastMessage   `json:"lastMessage"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// SeenEvent is the payload of messagesSeen.
type SeenEvent struct {
	ConversationID string `json:"conversationId"`
}

// ReadyEvent is sent once a connection is authenticated.
type ReadyEvent struct {
	UserID   string `json:"userId"`
	Protocol int    `json:"protocol"`
}

// User is the public view of an account.
type User struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
