// Command wschat is an interactive terminal client for the /ws endpoint.
//
// Plain lines are sent to the current recipient. Commands:
//
//	/to <userId>            switch recipient
//	/seen <conversationId>  mark a conversation as seen
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/log"
	"github.com/vovakirdan/chatrocket-server/internal/proto"
)

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	logger := log.New("info")
	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("wschat failed")
		os.Exit(1)
	}
}

func run(logger *zerolog.Logger) error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", os.Getenv("CHATROCKET_TOKEN"), "JWT issued by /api/login")
	to := flag.String("to", "", "initial recipient user id")
	flag.Parse()

	if *token == "" {
		return errors.New("token is required (-token or CHATROCKET_TOKEN)")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. /to <id> switches recipient, /seen <conversationId> marks read. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, logger)
	}()

	writeLoop(ctx, conn, *to, logger)
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, logger *zerolog.Logger) {
	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			logger.Error().Err(err).Msg("read failed")
			return
		}

		if out.Type == proto.OutboundTypeError && out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventReady:
			var evt proto.ReadyEvent
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("ready as %s (protocol %d)\n", evt.UserID, evt.Protocol)
			}
		case proto.EventNewMessage, proto.EventMessageSent:
			var msg proto.Message
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				logger.Warn().Err(err).Str("event", out.Event).Msg("decode message")
				continue
			}
			fmt.Printf("[%s] %s: %s\n", msg.ConversationID, msg.Sender, describe(msg))
		case proto.EventMessagesSeen:
			var evt proto.SeenEvent
			if err := json.Unmarshal(out.Data, &evt); err == nil {
				fmt.Printf("[%s] seen\n", evt.ConversationID)
			}
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func describe(msg proto.Message) string {
	parts := []string{}
	if msg.Text != "" {
		parts = append(parts, msg.Text)
	}
	if msg.Image != "" {
		parts = append(parts, "[image "+msg.Image+"]")
	}
	if msg.Video != "" {
		parts = append(parts, "[video "+msg.Video+"]")
	}
	if msg.PostID != "" {
		parts = append(parts, "[post "+msg.PostID+"]")
	}
	return strings.Join(parts, " ")
}

func writeLoop(ctx context.Context, conn *websocket.Conn, recipient string, logger *zerolog.Logger) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(line, "/to "):
				recipient = strings.TrimSpace(strings.TrimPrefix(line, "/to "))
				fmt.Printf("now messaging %s\n", recipient)
			case strings.HasPrefix(line, "/seen "):
				convID := strings.TrimSpace(strings.TrimPrefix(line, "/seen "))
				err = send(ctx, conn, proto.InboundTypeMarkSeen, proto.MarkSeenData{ConversationID: convID})
			default:
				if recipient == "" {
					fmt.Println("no recipient, use /to <userId>")
					continue
				}
				err = send(ctx, conn, proto.InboundTypeSend, proto.SendData{RecipientID: recipient, Message: line})
			}
			if err != nil {
				logger.Error().Err(err).Msg("write failed")
				return
			}
		}
	}
}
