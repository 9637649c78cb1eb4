package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendMessage sends a direct message to another user.
	CommandSendMessage CommandKind = iota
	// CommandMarkSeen marks a conversation as read by the sender of the command.
	CommandMarkSeen
)

// Command represents an action requested by a client.
type Command struct {
	Kind           CommandKind
	RecipientID    string
	Text           string
	Image          string
	Video          string
	ConversationID string
}
