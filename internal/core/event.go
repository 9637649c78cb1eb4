package core

import "github.com/vovakirdan/chatrocket-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage delivers a freshly persisted message to its recipient.
	EventNewMessage EventKind = iota
	// EventMessagesSeen tells a sender that the other side read the conversation.
	EventMessagesSeen
	// EventMessageSent acknowledges a send to the connection that issued it.
	EventMessageSent
	// EventReady confirms authentication of a connection.
	EventReady
	// EventError notifies clients about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "newMessage"
	case EventMessagesSeen:
		return "messagesSeen"
	case EventMessageSent:
		return "messageSent"
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind           EventKind
	Message        *store.Message // newMessage, messageSent
	ConversationID string         // messagesSeen
	UserID         string         // ready
	Error          *CoreError
}

// NewMessageEvent wraps a persisted message for the recipient.
func NewMessageEvent(msg *store.Message) *Event {
	return &Event{Kind: EventNewMessage, Message: msg}
}

// MessageSentEvent wraps a persisted message for the sending connection.
func MessageSentEvent(msg *store.Message) *Event {
	return &Event{Kind: EventMessageSent, Message: msg}
}

// MessagesSeenEvent reports that a conversation was read.
func MessagesSeenEvent(conversationID string) *Event {
	return &Event{Kind: EventMessagesSeen, ConversationID: conversationID}
}

// ErrorEvent carries a domain error back to one connection.
func ErrorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
