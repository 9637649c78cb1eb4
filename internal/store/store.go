package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	ProfilePic   string
	CreatedAt    time.Time
}

// LastMessage is the denormalized summary of the newest message in a conversation.
type LastMessage struct {
	Text   string
	Sender string
	Seen   bool
}

// Conversation pairs exactly two users.
// Participants are stored ordered so that UserA < UserB.
type Conversation struct {
	ID          string
	UserA       string
	UserB       string
	LastMessage LastMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Participants returns both participant ids.
func (c *Conversation) Participants() [2]string {
	return [2]string{c.UserA, c.UserB}
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// Message represents a persisted chat message.
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	Text           string
	Image          string
	Video          string
	PostID         string
	Seen           bool
	CreatedAt      time.Time
}

// Post is the slice of a post that sharing needs.
type Post struct {
	ID        string
	PostedBy  string
	Text      string
	Img       string
	CreatedAt time.Time
}

// PairKey builds the deduplication key for an unordered pair of users.
func PairKey(a, b string) string {
	lo, hi := OrderPair(a, b)
	return fmt.Sprintf("dm:%s:%s", lo, hi)
}

// OrderPair returns the two ids in ascending order.
func OrderPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SearchUsers searches for users by username.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// PostStore exposes the posts table owned by the posts collaborator.
type PostStore interface {
	CreatePost(ctx context.Context, post *Post) error
	GetPostByID(ctx context.Context, id string) (*Post, error)
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// FindConversationByParticipants looks a conversation up by unordered pair.
	FindConversationByParticipants(ctx context.Context, a, b string) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// CreateConversation creates the pair's conversation.
	// If a concurrent writer created it first, that row is returned with last updated.
	CreateConversation(ctx context.Context, a, b string, last LastMessage) (*Conversation, error)

	// UpdateLastMessage overwrites the conversation summary.
	UpdateLastMessage(ctx context.Context, id string, last LastMessage) error

	// MarkLastMessageSeen flips lastMessage.seen when the last sender is not viewerID.
	MarkLastMessageSeen(ctx context.Context, id, viewerID string) error

	// ListConversations lists the user's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// InsertMessage persists a message. ID and CreatedAt are assigned when empty.
	InsertMessage(ctx context.Context, msg *Message) error

	// ListMessages returns a conversation's messages ordered by creation time.
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// MarkAllSeenExcept flips seen on unseen messages not sent by excludedSender.
	// Returns the number of messages changed.
	MarkAllSeenExcept(ctx context.Context, conversationID, excludedSender string) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	PostStore
	ConversationStore
	MessageStore

	// WithinTx runs fn against a store bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// Close closes the underlying database connection.
	Close() error
}
