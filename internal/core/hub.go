package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Outcome reports whether a dispatched event reached a live connection.
type Outcome int

const (
	// Skipped means the user had no connection or its buffer was full.
	Skipped Outcome = iota
	// Delivered means the event was queued on the user's connection.
	Delivered
)

func (o Outcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "skipped"
}

type lookupRequest struct {
	userID string
	reply  chan string
}

type onlineRequest struct {
	userIDs []string
	reply   chan []string
}

type dispatchRequest struct {
	userID string
	event  *Event
	reply  chan Outcome
}

// Hub is the presence registry. It maps each online user to exactly one
// connection and pushes events to it. All state is owned by the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan string
	lookup     chan lookupRequest
	online     chan onlineRequest
	dispatch   chan dispatchRequest
	done       chan struct{}

	// Owned by Run.
	byUser map[string]*Client
	byConn map[string]*Client

	log zerolog.Logger
}

// NewHub creates a hub. Run must be started before it is used.
func NewHub(logger *zerolog.Logger) *Hub {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "hub").Logger()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan string),
		lookup:     make(chan lookupRequest),
		online:     make(chan onlineRequest),
		dispatch:   make(chan dispatchRequest),
		done:       make(chan struct{}),
		byUser:     make(map[string]*Client),
		byConn:     make(map[string]*Client),
		log:        l,
	}
}

// Run processes registry operations until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Int("online", len(h.byUser)).Msg("hub stopped")
			return
		case c := <-h.register:
			h.handleRegister(c)
		case connID := <-h.unregister:
			h.handleUnregister(connID)
		case req := <-h.lookup:
			if c, ok := h.byUser[req.userID]; ok {
				req.reply <- c.ID
			} else {
				req.reply <- ""
			}
		case req := <-h.online:
			req.reply <- h.handleOnline(req.userIDs)
		case req := <-h.dispatch:
			req.reply <- h.handleDispatch(req.userID, req.event)
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	if prev, ok := h.byUser[c.UserID]; ok && prev.ID != c.ID {
		// The older connection stays open but no longer receives pushes.
		delete(h.byConn, prev.ID)
		h.log.Debug().Str("user_id", c.UserID).Str("conn_id", prev.ID).Msg("connection superseded")
	}
	h.byUser[c.UserID] = c
	h.byConn[c.ID] = c
	h.log.Debug().Str("user_id", c.UserID).Str("conn_id", c.ID).Msg("client registered")
}

func (h *Hub) handleUnregister(connID string) {
	c, ok := h.byConn[connID]
	if !ok {
		return
	}
	delete(h.byConn, connID)
	if cur, ok := h.byUser[c.UserID]; ok && cur.ID == connID {
		delete(h.byUser, c.UserID)
	}
	h.log.Debug().Str("user_id", c.UserID).Str("conn_id", connID).Msg("client unregistered")
}

func (h *Hub) handleOnline(userIDs []string) []string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := h.byUser[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (h *Hub) handleDispatch(userID string, ev *Event) Outcome {
	c, ok := h.byUser[userID]
	if !ok {
		return Skipped
	}
	select {
	case c.Events <- ev:
		return Delivered
	default:
		h.log.Warn().Str("user_id", userID).Str("event", ev.Kind.String()).Msg("event buffer full, dropping")
		return Skipped
	}
}

// Register binds the client's user to its connection, replacing any earlier one.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes the connection. The user entry is cleared only if it
// still points at this connection.
func (h *Hub) Unregister(connID string) {
	select {
	case h.unregister <- connID:
	case <-h.done:
	}
}

// Lookup returns the connection id currently registered for the user.
func (h *Hub) Lookup(userID string) (string, bool) {
	req := lookupRequest{userID: userID, reply: make(chan string, 1)}
	select {
	case h.lookup <- req:
	case <-h.done:
		return "", false
	}
	connID := <-req.reply
	return connID, connID != ""
}

// Online returns the subset of userIDs that currently have a connection.
func (h *Hub) Online(userIDs ...string) []string {
	req := onlineRequest{userIDs: userIDs, reply: make(chan []string, 1)}
	select {
	case h.online <- req:
	case <-h.done:
		return nil
	}
	return <-req.reply
}

// Dispatch pushes ev to the user's connection without blocking on the consumer.
// Delivery is best-effort: there is no queue and no retry.
func (h *Hub) Dispatch(userID string, ev *Event) Outcome {
	if userID == "" || ev == nil {
		return Skipped
	}
	req := dispatchRequest{userID: userID, event: ev, reply: make(chan Outcome, 1)}
	select {
	case h.dispatch <- req:
	case <-h.done:
		return Skipped
	}
	return <-req.reply
}
