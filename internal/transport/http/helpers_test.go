package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrocket-server/internal/auth"
	"github.com/vovakirdan/chatrocket-server/internal/config"
	"github.com/vovakirdan/chatrocket-server/internal/core"
	"github.com/vovakirdan/chatrocket-server/internal/proto"
	"github.com/vovakirdan/chatrocket-server/internal/ratelimit"
	"github.com/vovakirdan/chatrocket-server/internal/service/messaging"
	"github.com/vovakirdan/chatrocket-server/internal/store"
	"github.com/vovakirdan/chatrocket-server/internal/store/sqldb"
)

const testSecret = "test-secret"

type testEnv struct {
	ts    *httptest.Server
	store *sqldb.SQLStore
	auth  *auth.Service
	hub   *core.Hub
}

type testUser struct {
	*store.User
	token string
}

func newTestEnv(t *testing.T, limiter ratelimit.Limiter) *testEnv {
	t.Helper()

	st, err := sqldb.NewWithSetup(":memory:", func(db *sql.DB) error {
		return sqldb.ApplySchema(context.Background(), db, sqldb.SQLiteSchema())
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := core.NewHub(nil)
	go hub.Run(ctx)

	disabledLogger := zerolog.New(nil)
	cfg := config.Default()
	cfg.JWT.Secret = testSecret

	server := NewServer(Deps{
		Hub:       hub,
		Auth:      authService,
		Store:     st,
		Messaging: messaging.New(st, hub, nil, nil, messaging.Options{}),
		Limiter:   limiter,
		Config:    &cfg,
		Logger:    &disabledLogger,
	})

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, auth: authService, hub: hub}
}

func (e *testEnv) register(t *testing.T, username string) testUser {
	t.Helper()
	token, user, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return testUser{User: user, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// dialAs connects with ?token= and consumes the ready event.
func (e *testEnv) dialAs(t *testing.T, ctx context.Context, u testUser) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL("token="+u.token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	ready := readOutbound(t, ctx, conn)
	if ready.Type != proto.OutboundTypeEvent || ready.Event != proto.EventReady {
		t.Fatalf("expected ready event, got %+v", ready)
	}

	// Registration happens right after ready is queued; wait until the hub sees it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := e.hub.Lookup(u.ID); ok {
			return conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("user %s never registered", u.Username)
	return nil
}

type rawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) rawOutbound {
	t.Helper()
	var out rawOutbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}
