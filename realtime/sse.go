package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/id"
	"github.com/fieldgate/fieldgate/query"
)

// sseClient is one table subscription held open over an SSE response.
type sseClient struct {
	id    id.ID
	table string
	ch    chan []byte
}

// SSEHub pushes table changes over Server-Sent-Events. Subscription is
// gated the same way as WebSocket, but payloads are NOT filtered per
// subscriber: every gated subscriber of a table receives the same rows.
// This matches the original system's behavior; use the WebSocket hub
// when per-row visibility matters. Implements fieldgate.Broadcaster.
type SSEHub struct {
	db     *fieldgate.Database
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*sseClient]struct{}
}

// SSEOption configures the hub.
type SSEOption func(*SSEHub)

// WithSSELogger sets the structured logger.
func WithSSELogger(l *slog.Logger) SSEOption {
	return func(h *SSEHub) { h.logger = l }
}

// NewSSEHub creates an SSE hub over db.
func NewSSEHub(db *fieldgate.Database, opts ...SSEOption) *SSEHub {
	h := &SSEHub{
		db:          db,
		logger:      slog.Default(),
		subscribers: make(map[string]map[*sseClient]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe streams change events for table to the response until the
// request context ends. Returns fieldgate.ErrPermissionDenied when the
// table's SELECT rules reject the user.
func (h *SSEHub) Subscribe(w http.ResponseWriter, r *http.Request, table string, user *fieldgate.UserContext) error {
	ctx := r.Context()
	if !canSubscribe(ctx, h.db, table, user) {
		return fmt.Errorf("%w: subscribe to table %s", fieldgate.ErrPermissionDenied, table)
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("realtime: response writer does not support streaming")
	}

	c := &sseClient{
		id:    id.NewSubscriptionID(),
		table: table,
		ch:    make(chan []byte, sendBuffer),
	}
	h.add(c)
	defer h.remove(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: subscribed\ndata: {\"table\":%q,\"subscription\":%q}\n\n", table, c.id.String())
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-c.ch:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func (h *SSEHub) add(c *sseClient) {
	h.mu.Lock()
	set, ok := h.subscribers[c.table]
	if !ok {
		set = make(map[*sseClient]struct{})
		h.subscribers[c.table] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

func (h *SSEHub) remove(c *sseClient) {
	h.mu.Lock()
	if set, ok := h.subscribers[c.table]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, c.table)
		}
	}
	h.mu.Unlock()
}

// Broadcast implements fieldgate.Broadcaster. The payload is encoded
// once and published unfiltered to every subscriber of the table.
func (h *SSEHub) Broadcast(ctx context.Context, table, event string, rows []query.Row) {
	h.mu.RLock()
	set := h.subscribers[table]
	clients := make([]*sseClient, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := newChange(table, event, rows).encode()
	if err != nil {
		h.logger.Error("realtime: encode change", "error", err)
		return
	}
	for _, c := range clients {
		select {
		case c.ch <- payload:
		default:
			h.logger.Warn("realtime: dropping message for slow subscriber", "subscription", c.id.String(), "table", table)
		}
	}
}

// Compile-time interface check.
var _ fieldgate.Broadcaster = (*SSEHub)(nil)
