package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/proto"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
	"github.com/vovakirdan/chatrocket-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeSend:
		var data proto.SendData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid newMessage payload"}
		}
		if data.RecipientID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "recipientId is required"}
		}
		return &core.Command{
			Kind:        core.CommandSendMessage,
			RecipientID: data.RecipientID,
			Text:        data.Message,
			Image:       data.Image,
			Video:       data.Video,
		}, nil
	case proto.InboundTypeMarkSeen:
		var data proto.MarkSeenData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid markMessagesAsSeen payload"}
		}
		if data.ConversationID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "conversationId is required"}
		}
		return &core.Command{
			Kind:           core.CommandMarkSeen,
			ConversationID: data.ConversationID,
		}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messageToProto(event.Message),
		}
	case core.EventMessageSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageSent,
			Data:  messageToProto(event.Message),
		}
	case core.EventMessagesSeen:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesSeen,
			Data:  proto.SeenEvent{ConversationID: event.ConversationID},
		}
	case core.EventReady:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReady,
			Data:  proto.ReadyEvent{UserID: event.UserID, Protocol: proto.ProtocolVersion},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageToProto(m *store.Message) proto.Message {
	if m == nil {
		return proto.Message{}
	}
	return proto.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Text:           m.Text,
		Image:          m.Image,
		Video:          m.Video,
		PostID:         m.PostID,
		Seen:           m.Seen,
		CreatedAt:      m.CreatedAt,
	}
}

func messagesToProto(msgs []*store.Message) []proto.Message {
	out := make([]proto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToProto(m))
	}
	return out
}

func conversationToProto(v messaging.ConversationView) proto.Conversation {
	return proto.Conversation{
		ID: v.Conversation.ID,
		Participants: []proto.Participant{{
			ID:         v.Other.ID,
			Username:   v.Other.Username,
			ProfilePic: v.Other.ProfilePic,
			Online:     v.Other.Online,
		}},
		LastMessage: proto.LastMessage{
			Text:   v.Conversation.LastMessage.Text,
			Sender: v.Conversation.LastMessage.Sender,
			Seen:   v.Conversation.LastMessage.Seen,
		},
		UpdatedAt: v.Conversation.UpdatedAt,
	}
}

func userToProto(u *store.User) proto.User {
	return proto.User{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// classifyError maps a service error to an HTTP status and wire error code.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, messaging.ErrMissingParticipant),
		errors.Is(err, messaging.ErrSelfConversation),
		errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, messaging.ErrMessageTooLong):
		return http.StatusBadRequest, core.ErrCodeBadRequest
	case errors.Is(err, messaging.ErrRecipientNotFound),
		errors.Is(err, messaging.ErrConversationNotFound),
		errors.Is(err, messaging.ErrPostNotFound):
		return http.StatusNotFound, core.ErrCodeNotFound
	case errors.Is(err, messaging.ErrNotParticipant):
		return http.StatusForbidden, core.ErrCodeForbidden
	case errors.Is(err, messaging.ErrUploadFailed):
		return http.StatusBadGateway, core.ErrCodeUploadFailed
	default:
		return http.StatusInternalServerError, core.ErrCodeInternal
	}
}

// errorMessage hides internal details from clients.
func errorMessage(err error, code string) string {
	if code == core.ErrCodeInternal {
		return "internal server error"
	}
	return err.Error()
}
