package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message types exchanged over the theme websocket
const (
	MessageThemeApplied = "theme.applied"
	MessageSystem       = "system"
	MessageError        = "error"
)

// Message is a websocket frame in either direction
type Message struct {
	Type      string `json:"type"`
	Theme     string `json:"theme,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
	Scheme    string `json:"scheme,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type client struct {
	conn       *websocket.Conn
	documentID string
	send       chan Message
}

// Hub pushes applied themes to the live pages of each document
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]map[*client]struct{}
	logger   *zap.Logger
}

// NewHub creates an empty hub. checkOrigin may be nil for same-origin only.
func NewHub(checkOrigin func(r *http.Request) bool, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[string]map[*client]struct{}),
		logger:  logger.With(zap.String("component", "theme_hub")),
	}
}

// Register subscribes the hub to applied-theme events
func (h *Hub) Register(dispatcher shared.EventDispatcher) {
	dispatcher.Register("theme.applied", h.HandleEvent)
}

// HandleEvent forwards a theme.applied event to the document's connections.
// It never blocks: a client whose buffer is full misses the message.
func (h *Hub) HandleEvent(event shared.DomainEvent) error {
	applied, ok := event.(theme.ThemeAppliedEvent)
	if !ok {
		return nil
	}
	msg := Message{
		Type:      MessageThemeApplied,
		Theme:     string(applied.Effective),
		Trigger:   string(applied.Trigger),
		Timestamp: applied.AppliedAt.UnixMilli(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[applied.DocumentID] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("Dropped theme message for slow client", zap.String("document_id", applied.DocumentID))
		}
	}
	return nil
}

// Clients returns the number of live connections for documentID
func (h *Hub) Clients(documentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[documentID])
}

// Serve upgrades the request and runs the connection until it closes.
// System reports from the page are passed to onSystem.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, documentID string, onSystem func(theme.SystemPreference) error) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		conn:       conn,
		documentID: documentID,
		send:       make(chan Message, sendBuffer),
	}
	h.add(c)
	h.logger.Debug("Theme client connected",
		zap.String("document_id", documentID),
		zap.Int("clients", h.Clients(documentID)),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	h.readPump(c, onSystem)
	h.remove(c)
	<-done
	return nil
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, id)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.documentID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.documentID] = set
	}
	set[c] = struct{}{}
}

// remove closes c.send exactly once, under the lock HandleEvent sends under
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.documentID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.documentID)
	}
	close(c.send)
}

func (h *Hub) readPump(c *client, onSystem func(theme.SystemPreference) error) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Theme client read failed", zap.Error(err))
			}
			return
		}
		if msg.Type != MessageSystem {
			continue
		}

		pref, err := theme.ParseSystemPreferenceStrict(msg.Scheme)
		if err == nil {
			err = onSystem(pref)
		}
		if err != nil {
			h.reply(c, Message{Type: MessageError, Error: err.Error()})
		}
	}
}

func (h *Hub) reply(c *client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.documentID][c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
