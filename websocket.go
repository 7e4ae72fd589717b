package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsSendBuffer   = 64
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The waterfall stream is read-only telemetry.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WaterfallFrame is one sub-channel update pushed to clients: the
// colour ring for painting plus the decode state overlaid on it.
type WaterfallFrame struct {
	Type       string `json:"type"`
	Subchannel int    `json:"subchannel"`
	Colours    []DB   `json:"colours"`
	Text       string `json:"text"`
	WPM        int    `json:"wpm"`
	Threshold  DB     `json:"threshold"`
}

// wsClientMessage is what clients send back: a sub-channel selection.
type wsClientMessage struct {
	Subscribe []int `json:"subscribe"`
}

// WSClient is one connected viewer.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// nil means every sub-channel
	subscribed map[int]bool
	mu         sync.Mutex
}

// WSHub fans waterfall frames out to connected clients.
type WSHub struct {
	clients map[*WSClient]bool
	mu      sync.RWMutex
	metrics *Metrics
}

// NewWSHub returns an empty hub.
func NewWSHub(metrics *Metrics) *WSHub {
	return &WSHub{
		clients: make(map[*WSClient]bool),
		metrics: metrics,
	}
}

// HandleWebSocket upgrades the connection and runs the client pumps.
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &WSClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveClients.Set(float64(count))
	}
	log.Printf("WebSocket client %s connected (%d total)", client.id, count)

	go client.writePump()
	go h.readPump(client)
}

func (h *WSHub) remove(client *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveClients.Set(float64(count))
	}
	log.Printf("WebSocket client %s disconnected (%d total)", client.id, count)
}

// readPump consumes subscription messages until the client goes away.
func (h *WSHub) readPump(client *WSClient) {
	defer func() {
		h.remove(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		client.mu.Lock()
		if len(msg.Subscribe) == 0 {
			client.subscribed = nil
		} else {
			client.subscribed = make(map[int]bool, len(msg.Subscribe))
			for _, subchannel := range msg.Subscribe {
				client.subscribed[subchannel] = true
			}
		}
		client.mu.Unlock()
	}
}

// writePump serialises all writes to the connection.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(wsPongTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) wants(subchannel int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed == nil || c.subscribed[subchannel]
}

// Broadcast pushes one frame to every client watching its
// sub-channel. Slow clients drop frames rather than stall the sync
// loop.
func (h *WSHub) Broadcast(frame WaterfallFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("WebSocket: failed to marshal frame: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.wants(frame.Subchannel) {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
