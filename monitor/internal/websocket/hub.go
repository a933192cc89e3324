package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub управляет WebSocket соединениями живой ленты станции
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope

	// закрывается при выходе из Run
	done chan struct{}

	mu sync.RWMutex

	stats struct {
		mu      sync.RWMutex
		sent    int64
		dropped int64
	}
}

// Client представляет WebSocket клиента
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// ID сессии для фильтрации; пустой ID получает все сессии
	sessionID string
}

// Message кадр ленты: тип события и полезная нагрузка
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"ts"`
}

type envelope struct {
	sessionID string
	payload   []byte
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// дашборд и станция обслуживаются с разных портов
		return true
	},
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию и рассылку до отмены ctx
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client registered: %p, session: %q", client, client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("[WEBSOCKET] Client unregistered: %p", client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.sessionID != "" && client.sessionID != msg.sessionID {
			continue
		}
		select {
		case client.send <- msg.payload:
			h.incrementSent()
		default:
			// медленный клиент отключается
			delete(h.clients, client)
			close(client.send)
			h.incrementDropped()
		}
	}
}

// Publish ставит событие сессии в рассылку без блокировки
func (h *Hub) Publish(sessionID, kind string, data interface{}) {
	message, err := json.Marshal(Message{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s event: %v", kind, err)
		return
	}

	select {
	case h.broadcast <- envelope{sessionID: sessionID, payload: message}:
	default:
		h.incrementDropped()
		log.Printf("[WARN] Broadcast channel full, dropping %s event", kind)
	}
}

// ClientCount число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket обрабатывает WebSocket соединения: /ws?session_id=...
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to upgrade connection: %v", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, 256),
		sessionID: r.URL.Query().Get("session_id"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump читает до разрыва соединения; входящие кадры игнорируются
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ERROR] WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[ERROR] Failed to write message: %v", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (h *Hub) incrementSent() {
	h.stats.mu.Lock()
	h.stats.sent++
	h.stats.mu.Unlock()
}

func (h *Hub) incrementDropped() {
	h.stats.mu.Lock()
	h.stats.dropped++
	h.stats.mu.Unlock()
}

// GetStats возвращает число доставленных и отброшенных сообщений
func (h *Hub) GetStats() (sent, dropped int64) {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()
	return h.stats.sent, h.stats.dropped
}
