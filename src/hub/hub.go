// Package hub relays price updates between websocket clients. It never touches
// order or TP state.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"orderstate/src/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const (
	EventPriceUpdate  = "price_update"
	EventPriceChanged = "price_changed"
)

// Event is the frame exchanged with clients.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Hub struct {
	config   Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

func NewHub(config Config) *Hub {
	h := &Hub{
		config:  config,
		clients: map[string]*client{},
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	logger.Info("[hub] all websocket clients disconnected")
}

// Publish sends a price_changed event to every connected client.
func (h *Hub) Publish(update model.PriceUpdate) error {
	if update.Symbol == "" {
		return errors.New("price update without symbol")
	}
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return h.broadcast(data)
}

// PublishRaw relays data unchanged as a price_changed event. data must be an object
// with a non-empty string symbol; every other key is passed through as sent.
func (h *Hub) PublishRaw(data json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("price update is not an object: %w", err)
	}
	var symbol string
	if err := json.Unmarshal(fields["symbol"], &symbol); err != nil || symbol == "" {
		return errors.New("price update without symbol")
	}
	return h.broadcast(data)
}

func (h *Hub) broadcast(data json.RawMessage) error {
	frame, err := json.Marshal(Event{Event: EventPriceChanged, Data: data})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// slow consumer
			logger.WithField("client_id", id).Warn("[hub] send buffer full, dropping client")
			close(c.send)
			delete(h.clients, id)
		}
	}
	return nil
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("[hub] websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(h.config.WriteWait))
		_ = conn.Close()
		logger.WithField("client_id", c.id).Debug("[hub] refused client after shutdown")
		return
	}
	h.clients[c.id] = c
	h.mu.Unlock()

	logger.WithField("client_id", c.id).Debug("[hub] client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		close(c.send)
		delete(h.clients, c.id)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		logger.WithField("client_id", c.id).Debug("[hub] client disconnected")
	}()

	c.conn.SetReadLimit(h.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).WithField("client_id", c.id).Warn("[hub] unexpected close")
			}
			return
		}
		h.handleFrame(c, message)
	}
}

func (h *Hub) handleFrame(c *client, message []byte) {
	log := logger.WithField("client_id", c.id)

	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		log.WithError(err).Warn("[hub] malformed frame dropped")
		return
	}
	if ev.Event != EventPriceUpdate {
		log.WithField("event", ev.Event).Debug("[hub] ignoring event")
		return
	}

	if err := h.PublishRaw(ev.Data); err != nil {
		log.WithError(err).Warn("[hub] price update dropped")
	}
}

func (h *Hub) writePump(c *client) {
	pingPeriod := h.config.PongWait * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
