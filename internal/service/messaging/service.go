// Package messaging owns the direct message lifecycle: validation, media
// externalisation, persistence, delivery and read receipts.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/events"
	"github.com/vovakirdan/chatrocket-server/internal/media"
	"github.com/vovakirdan/chatrocket-server/internal/store"
)

// DefaultMaxMessageLength is the text limit in characters.
const DefaultMaxMessageLength = 500

// Dispatcher pushes events to online users. *core.Hub implements it.
type Dispatcher interface {
	Dispatch(userID string, ev *core.Event) core.Outcome
	Online(userIDs ...string) []string
}

// SendInput describes one outgoing message.
type SendInput struct {
	SenderID    string
	RecipientID string
	Text        string
	Image       string // URL or inline payload
	Video       string // URL or inline payload
	PostID      string
}

// Participant is the other side of a conversation as shown in listings.
type Participant struct {
	ID         string
	Username   string
	ProfilePic string
	Online     bool
}

// ConversationView is a conversation from one user's point of view.
type ConversationView struct {
	Conversation *store.Conversation
	Other        Participant
}

// Service provides messaging business logic.
type Service struct {
	store     store.Store
	hub       Dispatcher
	uploader  media.Uploader
	publisher events.Publisher
	log       zerolog.Logger
	maxLength int
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxMessageLength int
	Logger           *zerolog.Logger
}

// New creates a messaging service. A nil uploader rejects inline media and a
// nil publisher drops domain events.
func New(st store.Store, hub Dispatcher, uploader media.Uploader, publisher events.Publisher, opts Options) *Service {
	if uploader == nil {
		uploader = media.Disabled{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	maxLength := opts.MaxMessageLength
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "messaging").Logger()
	}
	return &Service{
		store:     st,
		hub:       hub,
		uploader:  uploader,
		publisher: publisher,
		log:       logger,
		maxLength: maxLength,
	}
}

// SendMessage validates, stores and delivers a direct message.
// The returned message is the persisted one, with server-assigned id and time.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (*store.Message, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	if err := s.ensureRecipient(ctx, in.RecipientID); err != nil {
		return nil, err
	}

	if in.PostID != "" {
		if _, err := s.getPost(ctx, in.PostID); err != nil {
			return nil, err
		}
	}

	return s.deliver(ctx, in)
}

// SharePost sends an existing post to another user as a message.
// Any authenticated user may share any existing post.
func (s *Service) SharePost(ctx context.Context, senderID, postID, recipientID string) (*store.Message, error) {
	if postID == "" {
		return nil, ErrPostNotFound
	}

	in := SendInput{SenderID: senderID, RecipientID: recipientID, PostID: postID}
	if err := s.validateParticipants(in); err != nil {
		return nil, err
	}

	if err := s.ensureRecipient(ctx, recipientID); err != nil {
		return nil, err
	}

	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	author, err := s.store.GetUserByID(ctx, post.PostedBy)
	if err != nil {
		return nil, fmt.Errorf("load post author: %w", err)
	}

	in.Text = fmt.Sprintf("@%s shared a post", author.Username)
	return s.deliver(ctx, in)
}

// MarkSeen marks every unseen message from the other participant as seen.
// Returns the number of messages changed; zero means nothing was dispatched.
func (s *Service) MarkSeen(ctx context.Context, conversationID, viewerID string) (int64, error) {
	if conversationID == "" || viewerID == "" {
		return 0, ErrMissingParticipant
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrConversationNotFound
		}
		return 0, fmt.Errorf("load conversation: %w", err)
	}
	if !conv.HasParticipant(viewerID) {
		return 0, ErrNotParticipant
	}

	var updated int64
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		n, err := tx.MarkAllSeenExcept(ctx, conv.ID, viewerID)
		if err != nil {
			return err
		}
		updated = n
		if n == 0 {
			return nil
		}
		return tx.MarkLastMessageSeen(ctx, conv.ID, viewerID)
	})
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}

	if updated == 0 {
		return 0, nil
	}

	other := conv.Other(viewerID)
	outcome := s.hub.Dispatch(other, core.MessagesSeenEvent(conv.ID))
	s.log.Debug().
		Str("conversation_id", conv.ID).
		Str("viewer_id", viewerID).
		Int64("updated", updated).
		Str("outcome", outcome.String()).
		Msg("messages seen")

	s.publish(ctx, events.TypeMessagesSeen, conv.ID, events.MessagesSeen{
		ConversationID: conv.ID,
		ViewerID:       viewerID,
		Updated:        updated,
		SeenAt:         nowUTC(),
	})

	return updated, nil
}

// History returns the messages exchanged between two users, oldest first.
func (s *Service) History(ctx context.Context, userID, otherUserID string) ([]*store.Message, error) {
	if userID == "" || otherUserID == "" {
		return nil, ErrMissingParticipant
	}

	conv, err := s.store.FindConversationByParticipants(ctx, userID, otherUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*store.Message{}
	}
	return msgs, nil
}

// Conversations lists the user's conversations, most recent first, each
// with the other participant's profile and presence.
func (s *Service) Conversations(ctx context.Context, userID string) ([]ConversationView, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	others := make([]string, 0, len(convs))
	for _, c := range convs {
		others = append(others, c.Other(userID))
	}

	online := make(map[string]bool, len(others))
	if len(others) > 0 {
		for _, id := range s.hub.Online(others...) {
			online[id] = true
		}
	}

	views := make([]ConversationView, 0, len(convs))
	for i, c := range convs {
		p := Participant{ID: others[i], Online: online[others[i]]}
		u, err := s.store.GetUserByID(ctx, others[i])
		switch {
		case err == nil:
			p.Username = u.Username
			p.ProfilePic = u.ProfilePic
		case errors.Is(err, store.ErrNotFound):
			s.log.Warn().Str("user_id", others[i]).Str("conversation_id", c.ID).Msg("conversation peer missing")
		default:
			return nil, fmt.Errorf("load participant: %w", err)
		}
		views = append(views, ConversationView{Conversation: c, Other: p})
	}

	return views, nil
}

func (s *Service) validate(in SendInput) error {
	if err := s.validateParticipants(in); err != nil {
		return err
	}
	if utf8.RuneCountInString(in.Text) > s.maxLength {
		return fmt.Errorf("%w: max %d characters", ErrMessageTooLong, s.maxLength)
	}
	if strings.TrimSpace(in.Text) == "" && in.Image == "" && in.Video == "" && in.PostID == "" {
		return ErrEmptyMessage
	}
	return nil
}

func (s *Service) validateParticipants(in SendInput) error {
	if in.SenderID == "" || in.RecipientID == "" {
		return ErrMissingParticipant
	}
	if in.SenderID == in.RecipientID {
		return ErrSelfConversation
	}
	return nil
}

func (s *Service) ensureRecipient(ctx context.Context, recipientID string) error {
	if _, err := s.store.GetUserByID(ctx, recipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRecipientNotFound
		}
		return fmt.Errorf("load recipient: %w", err)
	}
	return nil
}

func (s *Service) getPost(ctx context.Context, postID string) (*store.Post, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("load post: %w", err)
	}
	return post, nil
}

// deliver uploads media, persists the message atomically with its
// conversation, then pushes it to the recipient.
func (s *Service) deliver(ctx context.Context, in SendInput) (*store.Message, error) {
	image, err := s.externalise(ctx, in.Image, media.ResourceImage)
	if err != nil {
		return nil, err
	}
	video, err := s.externalise(ctx, in.Video, media.ResourceVideo)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		Sender:    in.SenderID,
		Text:      in.Text,
		Image:     image,
		Video:     video,
		PostID:    in.PostID,
		CreatedAt: nowUTC(),
	}
	last := store.LastMessage{Text: in.Text, Sender: in.SenderID}

	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		conv, err := tx.FindConversationByParticipants(ctx, in.SenderID, in.RecipientID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			conv, err = tx.CreateConversation(ctx, in.SenderID, in.RecipientID, last)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.UpdateLastMessage(ctx, conv.ID, last); err != nil {
				return err
			}
		}

		msg.ConversationID = conv.ID
		return tx.InsertMessage(ctx, msg)
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	outcome := s.hub.Dispatch(in.RecipientID, core.NewMessageEvent(msg))
	s.log.Debug().
		Str("message_id", msg.ID).
		Str("conversation_id", msg.ConversationID).
		Str("recipient_id", in.RecipientID).
		Str("outcome", outcome.String()).
		Msg("message sent")

	s.publish(ctx, events.TypeMessageCreated, msg.ConversationID, events.MessageCreated{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.Sender,
		RecipientID:    in.RecipientID,
		HasMedia:       msg.Image != "" || msg.Video != "",
		PostID:         msg.PostID,
		CreatedAt:      msg.CreatedAt,
	})

	return msg, nil
}

// externalise uploads an inline payload. Hosted URLs pass through unchanged.
func (s *Service) externalise(ctx context.Context, value string, kind media.ResourceType) (string, error) {
	if value == "" || media.IsRemoteURL(value) {
		return value, nil
	}
	url, err := s.uploader.Upload(ctx, value, kind)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("media upload failed")
		return "", fmt.Errorf("%w: %s: %v", ErrUploadFailed, kind, err)
	}
	return url, nil
}

func (s *Service) publish(ctx context.Context, eventType, key string, v any) {
	if err := events.PublishJSON(ctx, s.publisher, eventType, key, v); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("publish domain event")
	}
}
