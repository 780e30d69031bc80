package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"holachat/internal/infrastructure/metrics"
	"holachat/pkg/logger"
)

// Client represents a WebSocket connection client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	// subscription id -> destination, guarded by Manager.mutex
	subscriptions map[string]string
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID:        userID,
		Conn:          conn,
		Send:          make(chan []byte, 64),
		subscriptions: make(map[string]string),
	}
}

// Manager is the broker hub: it tracks connected clients and their inbox
// subscriptions and fans published records out to subscribers.
type Manager struct {
	clients    map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	done       chan struct{}
	metrics    *metrics.Broker
}

// NewManager creates a new WebSocket connection manager
func NewManager(m *metrics.Broker) *Manager {
	if m == nil {
		m = metrics.NewBroker(nil)
	}
	return &Manager{
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Start runs the manager's main loop in a goroutine. Cancelling ctx closes
// every connection.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client] = struct{}{}
				m.mutex.Unlock()
				m.metrics.Clients.Inc()
				logger.Debug("Broker: client registered: %s", client.UserID)

			case client := <-m.Unregister:
				m.remove(client)
				logger.Debug("Broker: client unregistered: %s", client.UserID)

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for client := range m.clients {
					m.dropLocked(client)
					client.Conn.Close()
				}
				m.mutex.Unlock()
				return
			}
		}
	}()
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dropLocked(client)
}

func (m *Manager) dropLocked(client *Client) {
	if _, ok := m.clients[client]; !ok {
		return
	}
	delete(m.clients, client)
	m.metrics.Subscriptions.Sub(float64(len(client.subscriptions)))
	client.subscriptions = map[string]string{}
	close(client.Send)
	m.metrics.Clients.Dec()
}

// Serve registers conn for userID and pumps it until the connection ends or
// the manager stops.
func (m *Manager) Serve(userID string, conn *websocket.Conn) {
	client := NewClient(userID, conn)
	select {
	case m.Register <- client:
	case <-m.done:
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(m)
}

// Publish hands record to every subscription on destination and returns the
// number of subscriptions reached.
func (m *Manager) Publish(destination string, record json.RawMessage) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	delivered := 0
	for client := range m.clients {
		for subID, dest := range client.subscriptions {
			if dest != destination {
				continue
			}
			frame, err := encodeFrame(MessageTypeMessage, destination, subID, record)
			if err != nil {
				logger.Error("Broker: failed to encode frame for %s: %v", destination, err)
				m.metrics.Published.WithLabelValues("error").Inc()
				continue
			}
			select {
			case client.Send <- frame:
				delivered++
				m.metrics.Published.WithLabelValues("delivered").Inc()
			default:
				logger.Warn("Broker: send buffer full for %s, dropping frame", client.UserID)
				m.metrics.Published.WithLabelValues("dropped").Inc()
			}
		}
	}
	return delivered
}

// SubscriberCount reports the live subscriptions on destination.
func (m *Manager) SubscriberCount(destination string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n := 0
	for client := range m.clients {
		for _, dest := range client.subscriptions {
			if dest == destination {
				n++
			}
		}
	}
	return n
}

func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// DisconnectUser closes every connection of userID. The read pumps then
// unregister the clients.
func (m *Manager) DisconnectUser(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	n := 0
	for client := range m.clients {
		if client.UserID == userID {
			client.Conn.Close()
			n++
		}
	}
	return n
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("Broker: read error from %s: %v", c.UserID, err)
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		m.HandleClientMessage(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("Broker: write to %s failed: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
