package http

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/chatrocket-server/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketSendAndSeen(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := env.dialAs(t, ctx, alice)
	connB := env.dialAs(t, ctx, bob)

	sendInbound(t, ctx, connA, proto.InboundTypeSend, proto.SendData{RecipientID: bob.ID, Message: "hi there"})

	ack := readOutbound(t, ctx, connA)
	if ack.Event != proto.EventMessageSent {
		t.Fatalf("expected messageSent ack, got %+v", ack)
	}
	var sent proto.Message
	if err := json.Unmarshal(ack.Data, &sent); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}

	pushed := readOutbound(t, ctx, connB)
	if pushed.Type != proto.OutboundTypeEvent || pushed.Event != proto.EventNewMessage {
		t.Fatalf("expected newMessage, got %+v", pushed)
	}
	var got proto.Message
	if err := json.Unmarshal(pushed.Data, &got); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if got.ID != sent.ID || got.Text != "hi there" || got.Sender != alice.ID || got.Seen {
		t.Fatalf("unexpected message payload: %+v", got)
	}

	// userId is informational; the receipt goes to the other participant.
	sendInbound(t, ctx, connB, proto.InboundTypeMarkSeen, proto.MarkSeenData{ConversationID: got.ConversationID, UserID: "whoever"})

	seen := readOutbound(t, ctx, connA)
	if seen.Event != proto.EventMessagesSeen {
		t.Fatalf("expected messagesSeen, got %+v", seen)
	}
	var payload proto.SeenEvent
	if err := json.Unmarshal(seen.Data, &payload); err != nil {
		t.Fatalf("unmarshal seen: %v", err)
	}
	if payload.ConversationID != got.ConversationID {
		t.Fatalf("unexpected conversation id: %s", payload.ConversationID)
	}
}

func TestWebSocketHelloAuthentication(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: alice.token, Protocol: proto.ProtocolVersion})

	ready := readOutbound(t, ctx, conn)
	if ready.Event != proto.EventReady {
		t.Fatalf("expected ready, got %+v", ready)
	}
	var data proto.ReadyEvent
	if err := json.Unmarshal(ready.Data, &data); err != nil {
		t.Fatalf("unmarshal ready: %v", err)
	}
	if data.UserID != alice.ID || data.Protocol != proto.ProtocolVersion {
		t.Fatalf("unexpected ready payload: %+v", data)
	}
}

func TestWebSocketInvalidToken(t *testing.T) {
	env := newTestEnv(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sendInbound(t, ctx, conn, proto.InboundTypeHello, proto.HelloData{Token: "invalid"})

	out := readOutbound(t, ctx, conn)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized error, got %+v", out)
	}
}

func TestWebSocketForeignTokenWithSubject(t *testing.T) {
	env := newTestEnv(t, nil)
	bob := env.register(t, "bob")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": bob.ID,
		"iss": "test",
		"aud": "test",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL("token="+signed), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if out := readOutbound(t, ctx, conn); out.Event != proto.EventReady {
		t.Fatalf("expected ready, got %+v", out)
	}
}

func TestWebSocketCommandErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := env.dialAs(t, ctx, alice)

	tests := []struct {
		name string
		typ  string
		data any
		code string
	}{
		{"unknown type", "join", map[string]string{"room": "general"}, "bad_request"},
		{"missing recipient", proto.InboundTypeSend, proto.SendData{Message: "hi"}, "bad_request"},
		{"self message", proto.InboundTypeSend, proto.SendData{RecipientID: alice.ID, Message: "hi"}, "bad_request"},
		{"too long", proto.InboundTypeSend, proto.SendData{RecipientID: "ghost", Message: strings.Repeat("x", 501)}, "bad_request"},
		{"unknown recipient", proto.InboundTypeSend, proto.SendData{RecipientID: "ghost", Message: "hi"}, "not_found"},
		{"unknown conversation", proto.InboundTypeMarkSeen, proto.MarkSeenData{ConversationID: "ghost"}, "not_found"},
		{"second hello", proto.InboundTypeHello, proto.HelloData{Token: alice.token}, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendInbound(t, ctx, conn, tt.typ, tt.data)
			out := readOutbound(t, ctx, conn)
			if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != tt.code {
				t.Fatalf("expected %s error, got %+v", tt.code, out)
			}
		})
	}
}

func TestWebSocketLastConnectionWins(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	old := env.dialAs(t, ctx, bob)
	oldID, _ := env.hub.Lookup(bob.ID)
	newer := env.dialAs(t, ctx, bob)

	// dialAs returns once any bob connection is registered; wait for the newer one.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if id, _ := env.hub.Lookup(bob.ID); id != oldID {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Closing the superseded socket must not take bob offline.
	old.Close(websocket.StatusNormalClosure, "bye")
	time.Sleep(50 * time.Millisecond)

	connA := env.dialAs(t, ctx, alice)
	sendInbound(t, ctx, connA, proto.InboundTypeSend, proto.SendData{RecipientID: bob.ID, Message: "which tab?"})

	if out := readOutbound(t, ctx, newer); out.Event != proto.EventNewMessage {
		t.Fatalf("expected newest connection to receive the message, got %+v", out)
	}
}
