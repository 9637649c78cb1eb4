package core

// eventBuffer bounds how many undelivered events a connection may hold.
// Dispatch into a full buffer is dropped.
const eventBuffer = 32

// Client is one live connection of an authenticated user.
type Client struct {
	// ID identifies the connection, not the user.
	ID       string
	UserID   string
	Username string
	Events   chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(connID, userID, username string) *Client {
	if username == "" {
		username = userID
	}
	return &Client{
		ID:       connID,
		UserID:   userID,
		Username: username,
		Events:   make(chan *Event, eventBuffer),
	}
}
