package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/proto"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
)

// MessageHandlers exposes the messaging service over REST.
type MessageHandlers struct {
	svc *messaging.Service
	log *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messaging.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{svc: svc, log: logger}
}

// SeenResponse reports how many messages were flipped to seen.
type SeenResponse struct {
	Updated int64 `json:"updated"`
}

// Send handles sending a direct message.
// POST /api/messages
func (h *MessageHandlers) Send(c *gin.Context) {
	var req proto.SendData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), messaging.SendInput{
		SenderID:    currentUserID(c),
		RecipientID: req.RecipientID,
		Text:        req.Message,
		Image:       req.Image,
		Video:       req.Video,
	})
	if err != nil {
		h.respondError(c, err, "failed to send message")
		return
	}

	c.JSON(http.StatusCreated, messageToProto(msg))
}

// History returns the conversation with another user, oldest message first.
// GET /api/messages/:otherUserId
func (h *MessageHandlers) History(c *gin.Context) {
	msgs, err := h.svc.History(c.Request.Context(), currentUserID(c), c.Param("otherUserId"))
	if err != nil {
		h.respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, messagesToProto(msgs))
}

// Conversations lists the caller's conversations.
// GET /api/messages/conversations
func (h *MessageHandlers) Conversations(c *gin.Context) {
	views, err := h.svc.Conversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err, "failed to list conversations")
		return
	}

	out := make([]proto.Conversation, 0, len(views))
	for _, v := range views {
		out = append(out, conversationToProto(v))
	}
	c.JSON(http.StatusOK, out)
}

// MarkSeen marks a conversation as read by the caller.
// POST /api/messages/seen
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	var req proto.MarkSeenData
	if err := c.ShouldBindJSON(&req); err != nil || req.ConversationID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "conversationId is required", Code: core.ErrCodeBadRequest})
		return
	}

	n, err := h.svc.MarkSeen(c.Request.Context(), req.ConversationID, currentUserID(c))
	if err != nil {
		h.respondError(c, err, "failed to mark messages seen")
		return
	}
	c.JSON(http.StatusOK, SeenResponse{Updated: n})
}

// SharePost sends a post to another user as a message.
// POST /api/posts/share
func (h *MessageHandlers) SharePost(c *gin.Context) {
	var req proto.ShareData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := h.svc.SharePost(c.Request.Context(), currentUserID(c), req.PostID, req.RecipientID)
	if err != nil {
		h.respondError(c, err, "failed to share post")
		return
	}
	c.JSON(http.StatusCreated, messageToProto(msg))
}

func (h *MessageHandlers) respondError(c *gin.Context, err error, logMsg string) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("user_id", currentUserID(c)).Msg(logMsg)
	} else {
		h.log.Debug().Err(err).Str("user_id", currentUserID(c)).Msg(logMsg)
	}
	c.JSON(status, ErrorResponse{Error: errorMessage(err, code), Code: code})
}
