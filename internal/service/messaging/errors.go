package messaging

import "errors"

// Validation errors.
var (
	ErrMissingParticipant = errors.New("sender and recipient are required")
	ErrSelfConversation   = errors.New("cannot message yourself")
	ErrEmptyMessage       = errors.New("message must have text, image, video or post")
	ErrMessageTooLong     = errors.New("message text is too long")
)

// Lookup errors.
var (
	ErrRecipientNotFound    = errors.New("recipient not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPostNotFound         = errors.New("post not found")
)

// ErrNotParticipant is returned when a user acts on a conversation it is not part of.
var ErrNotParticipant = errors.New("not a participant of this conversation")

// ErrUploadFailed is returned when media could not be stored. Nothing is persisted.
var ErrUploadFailed = errors.New("media upload failed")
