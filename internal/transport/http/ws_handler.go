package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/auth"
	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/proto"
	"github.com/vovakirdan/chatrocket-server/internal/ratelimit"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
)

const helloTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub       *core.Hub
	auth      *auth.Service
	messaging *messaging.Service
	limiter   ratelimit.Limiter
	readLimit int64
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(deps Deps) stdhttp.Handler {
	return &WSHandler{
		hub:       deps.Hub,
		auth:      deps.Auth,
		messaging: deps.Messaging,
		limiter:   deps.Limiter,
		readLimit: deps.Config.MaxMessageBytes,
		log:       deps.Logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	claims, err := h.authenticate(ctx, conn, r.URL.Query().Get("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws authentication failed")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	client := core.NewClient(uuid.NewString(), claims.UserID, claims.Username)
	client.Events <- &core.Event{Kind: core.EventReady, UserID: client.UserID}
	h.hub.Register(client)
	defer h.hub.Unregister(client.ID)

	logger := h.log.With().Str("user_id", client.UserID).Str("conn_id", client.ID).Logger()
	logger.Debug().Msg("ws client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// authenticate resolves the caller from ?token= or from a hello frame.
// Failures are reported to the client before the caller closes the socket.
func (h *WSHandler) authenticate(ctx context.Context, conn *websocket.Conn, queryToken string) (*auth.Claims, error) {
	if queryToken != "" {
		claims, err := h.auth.ValidateToken(queryToken)
		if err != nil {
			h.writeError(ctx, conn, core.ErrCodeUnauthorized, "invalid token")
			return nil, err
		}
		return claims, nil
	}

	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(helloCtx, conn, &inbound); err != nil {
		return nil, err
	}
	if inbound.Type != proto.InboundTypeHello {
		h.writeError(ctx, conn, core.ErrCodeUnauthorized, "hello required")
		return nil, errors.New("first frame is not hello")
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		h.writeError(ctx, conn, core.ErrCodeBadRequest, "invalid hello payload")
		return nil, err
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		h.writeError(ctx, conn, core.ErrCodeUnsupportedVersion, "unsupported protocol version")
		return nil, errors.New("unsupported protocol version")
	}

	claims, err := h.auth.ValidateToken(hello.Token)
	if err != nil {
		h.writeError(ctx, conn, core.ErrCodeUnauthorized, "invalid token")
		return nil, err
	}
	return claims, nil
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) {
	_ = wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if inbound.Type == proto.InboundTypeHello {
			h.push(client, core.ErrorEvent(core.ErrCodeBadRequest, "already authenticated"), logger)
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			h.push(client, core.ErrorEvent(protoErr.Code, protoErr.Msg), logger)
			continue
		}

		ok, err := h.limiter.Allow(ctx, client.UserID)
		if err != nil {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			h.push(client, core.ErrorEvent(core.ErrCodeRateLimited, "too many requests"), logger)
			continue
		}

		h.execute(ctx, client, cmd, logger)
	}
}

// execute runs one command. Replies go through the client's event queue so
// they stay ordered with pushes from other users.
func (h *WSHandler) execute(ctx context.Context, client *core.Client, cmd *core.Command, logger *zerolog.Logger) {
	switch cmd.Kind {
	case core.CommandSendMessage:
		msg, err := h.messaging.SendMessage(ctx, messaging.SendInput{
			SenderID:    client.UserID,
			RecipientID: cmd.RecipientID,
			Text:        cmd.Text,
			Image:       cmd.Image,
			Video:       cmd.Video,
		})
		if err != nil {
			h.pushError(client, err, logger)
			return
		}
		h.push(client, core.MessageSentEvent(msg), logger)
	case core.CommandMarkSeen:
		if _, err := h.messaging.MarkSeen(ctx, cmd.ConversationID, client.UserID); err != nil {
			h.pushError(client, err, logger)
		}
	}
}

func (h *WSHandler) pushError(client *core.Client, err error, logger *zerolog.Logger) {
	_, code := classifyError(err)
	if code == core.ErrCodeInternal {
		logger.Error().Err(err).Msg("ws command failed")
	}
	h.push(client, core.ErrorEvent(code, errorMessage(err, code)), logger)
}

func (h *WSHandler) push(client *core.Client, ev *core.Event, logger *zerolog.Logger) {
	select {
	case client.Events <- ev:
	default:
		logger.Warn().Str("event", ev.Kind.String()).Msg("event buffer full, dropping reply")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
