package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Authorizer decides whether userID may subscribe to topic.
type Authorizer func(ctx context.Context, userID uuid.UUID, topic string) error

type inboundFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// OutboundFrame is what the gateway writes to clients.
type OutboundFrame struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
	Event *Event `json:"event,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Frame types.
const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FramePing         = "ping"
	FrameConnected    = "connected"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FrameEvent        = "event"
	FramePong         = "pong"
	FrameError        = "error"
)

// Gateway bridges websocket clients onto a Transport. Each connection keeps
// its own subscriptions, all released when the socket goes away.
type Gateway struct {
	transport Transport
	authorize Authorizer
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	timeout   time.Duration

	mu    sync.Mutex
	conns map[string]*Connection
}

func NewGateway(t Transport, authorize Authorizer, log zerolog.Logger) *Gateway {
	return &Gateway{
		transport: t,
		authorize: authorize,
		log:       log.With().Str("component", "gateway").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		timeout: 5 * time.Second,
		conns:   make(map[string]*Connection),
	}
}

// Serve upgrades the request and processes frames until the client leaves.
// userID must already be authenticated.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := NewConnection(userID, ws)
	conn.Start()
	g.attach(conn)

	subs := make(map[string]*Subscription)
	defer func() {
		for _, s := range subs {
			s.Close()
		}
		g.detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	ws.SetReadLimit(maxReadSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	_ = conn.SendJSON(OutboundFrame{Type: FrameConnected})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				g.log.Debug().Err(err).Str("conn", conn.ID).Msg("websocket read ended")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.replyError(conn, "bad_request", "invalid payload")
			continue
		}

		switch frame.Type {
		case FrameSubscribe:
			g.handleSubscribe(r.Context(), conn, subs, frame.Topic)
		case FrameUnsubscribe:
			if s, ok := subs[frame.Topic]; ok {
				s.Close()
				delete(subs, frame.Topic)
			}
			_ = conn.SendJSON(OutboundFrame{Type: FrameUnsubscribed, Topic: frame.Topic})
		case FramePing:
			_ = conn.SendJSON(OutboundFrame{Type: FramePong})
		default:
			g.replyError(conn, "unsupported_type", "unknown frame type")
		}
	}
}

func (g *Gateway) handleSubscribe(ctx context.Context, conn *Connection, subs map[string]*Subscription, topic string) {
	if topic == "" {
		g.replyError(conn, "bad_request", "topic is required")
		return
	}
	if _, ok := subs[topic]; ok {
		_ = conn.SendJSON(OutboundFrame{Type: FrameSubscribed, Topic: topic})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := g.authorize(ctx, conn.UserID, topic); err != nil {
		g.replyError(conn, "forbidden", err.Error())
		return
	}

	subs[topic] = g.transport.Subscribe(topic, nil, func(e Event) {
		ev := e
		if err := conn.SendJSON(OutboundFrame{Type: FrameEvent, Topic: e.Topic, Event: &ev}); err != nil {
			g.log.Debug().Err(err).Str("conn", conn.ID).Msg("dropping event for closed connection")
		}
	})
	_ = conn.SendJSON(OutboundFrame{Type: FrameSubscribed, Topic: topic})
}

func (g *Gateway) replyError(conn *Connection, code, msg string) {
	_ = conn.SendJSON(OutboundFrame{Type: FrameError, Code: code, Error: msg})
}

func (g *Gateway) attach(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[c.ID] = c
}

func (g *Gateway) detach(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.conns, c.ID)
}

// ConnectionCount returns the number of live sockets.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Shutdown closes every live connection.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}
}
