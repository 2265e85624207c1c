package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/id"
	"github.com/fieldgate/fieldgate/query"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// clientMessage is the inbound subscribe/unsubscribe frame.
type clientMessage struct {
	Action string `json:"action"`
	Table  string `json:"table"`
}

// ackMessage answers subscribe/unsubscribe frames.
type ackMessage struct {
	Type         string `json:"type"`
	Table        string `json:"table"`
	Subscription string `json:"subscription,omitempty"`
	Error        string `json:"error,omitempty"`
}

// wsClient is one connected WebSocket peer.
type wsClient struct {
	id   id.ID
	hub  *WSHub
	conn *websocket.Conn
	user *fieldgate.UserContext
	send chan []byte
	done chan struct{}

	mu   sync.Mutex
	subs map[string]id.ID
}

// closed reports whether the client has been dropped. Senders check it
// before writing to send; send itself is never closed, so a fan-out
// goroutine holding a stale subscriber snapshot can race drop safely.
func (c *wsClient) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// WSHub tracks WebSocket subscribers per table and fans mutations out
// to them, re-filtering payload rows per client with the table's full
// SELECT rules. Implements fieldgate.Broadcaster.
type WSHub struct {
	db       *fieldgate.Database
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*wsClient]struct{}
}

// WSOption configures the hub.
type WSOption func(*WSHub)

// WithWSLogger sets the structured logger.
func WithWSLogger(l *slog.Logger) WSOption {
	return func(h *WSHub) { h.logger = l }
}

// WithCheckOrigin replaces the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) WSOption {
	return func(h *WSHub) { h.upgrader.CheckOrigin = fn }
}

// NewWSHub creates a WebSocket hub over db.
func NewWSHub(db *fieldgate.Database, opts ...WSOption) *WSHub {
	h := &WSHub{
		db: db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      slog.Default(),
		subscribers: make(map[string]map[*wsClient]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle upgrades the request and serves the connection until the peer
// disconnects. The user is the already-authenticated identity of the
// connecting peer; its SELECT permissions gate every subscription.
func (h *WSHub) Handle(w http.ResponseWriter, r *http.Request, user *fieldgate.UserContext) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &wsClient{
		id:   id.NewConnectionID(),
		hub:  h,
		conn: conn,
		user: user,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		subs: make(map[string]id.ID),
	}
	h.logger.Debug("websocket connected", "connection", c.id.String())
	go c.writePump()
	c.readPump(r.Context())
	return nil
}

func (h *WSHub) subscribe(c *wsClient, table string) {
	h.mu.Lock()
	set, ok := h.subscribers[table]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.subscribers[table] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WSHub) unsubscribe(c *wsClient, table string) {
	h.mu.Lock()
	if set, ok := h.subscribers[table]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, table)
		}
	}
	h.mu.Unlock()
}

func (h *WSHub) drop(c *wsClient) {
	c.mu.Lock()
	tables := make([]string, 0, len(c.subs))
	for table := range c.subs {
		tables = append(tables, table)
	}
	c.subs = map[string]id.ID{}
	c.mu.Unlock()
	for _, table := range tables {
		h.unsubscribe(c, table)
	}
	close(c.done)
}

// Broadcast implements fieldgate.Broadcaster. Fan-out is batched: the
// configured batch size bounds how many clients are served concurrently,
// and each batch completes before the next starts. Every client gets
// the subset of rows its own SELECT rules grant; clients whose subset
// is empty receive nothing.
func (h *WSHub) Broadcast(ctx context.Context, table, event string, rows []query.Row) {
	h.mu.RLock()
	set := h.subscribers[table]
	clients := make([]*wsClient, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	rules, defined := selectRules(ctx, h.db, table)
	if !defined {
		return
	}

	batch := h.db.Config().BroadcastBatchSize
	if batch <= 0 {
		batch = 100
	}
	for start := 0; start < len(clients); start += batch {
		end := min(start+batch, len(clients))
		var wg sync.WaitGroup
		for _, c := range clients[start:end] {
			wg.Add(1)
			go func(c *wsClient) {
				defer wg.Done()
				h.deliver(ctx, c, table, event, rules, rows)
			}(c)
		}
		wg.Wait()
	}
}

func (h *WSHub) deliver(ctx context.Context, c *wsClient, table, event string, rules []fieldgate.Rule, rows []query.Row) {
	visible := rows
	if len(rules) > 0 {
		visible = make([]query.Row, 0, len(rows))
		for _, row := range rows {
			if h.db.Evaluator().Evaluate(ctx, rules, c.user, row, h.db.DB()) {
				visible = append(visible, row)
			}
		}
	}
	if len(visible) == 0 {
		return
	}
	payload, err := newChange(table, event, visible).encode()
	if err != nil {
		h.logger.Error("realtime: encode change", "error", err)
		return
	}
	if c.closed() {
		return
	}
	select {
	case c.send <- payload:
	default:
		// Slow consumer: drop the message rather than block fan-out.
		h.logger.Warn("realtime: dropping message for slow client", "connection", c.id.String(), "table", table)
	}
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "connection", c.id.String(), "error", err)
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.ack(ackMessage{Type: "error", Error: "invalid message"})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg clientMessage) {
	switch msg.Action {
	case "subscribe":
		if !canSubscribe(ctx, c.hub.db, msg.Table, c.user) {
			c.ack(ackMessage{Type: "subscribe_denied", Table: msg.Table, Error: "not authorized"})
			return
		}
		subID := id.NewSubscriptionID()
		c.mu.Lock()
		c.subs[msg.Table] = subID
		c.mu.Unlock()
		c.hub.subscribe(c, msg.Table)
		c.ack(ackMessage{Type: "subscribed", Table: msg.Table, Subscription: subID.String()})
	case "unsubscribe":
		c.mu.Lock()
		delete(c.subs, msg.Table)
		c.mu.Unlock()
		c.hub.unsubscribe(c, msg.Table)
		c.ack(ackMessage{Type: "unsubscribed", Table: msg.Table})
	default:
		c.ack(ackMessage{Type: "error", Error: "unknown action"})
	}
}

func (c *wsClient) ack(msg ackMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if c.closed() {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Compile-time interface check.
var _ fieldgate.Broadcaster = (*WSHub)(nil)
