package websocket

import (
	"encoding/json"

	"holachat/pkg/logger"
)

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage WSMessage
	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		logger.Warn("Broker: failed to unmarshal message from client %s: %v", client.UserID, err)
		m.sendErrorToClient(client, "", "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case MessageTypePing:
		m.sendToClient(client, MessageTypePong, "", "", map[string]string{"status": "alive"})

	case MessageTypeSubscribe:
		m.handleSubscribe(client, wsMessage)

	case MessageTypeUnsubscribe:
		m.handleUnsubscribe(client, wsMessage)

	case MessageTypePong:

	default:
		logger.Warn("Broker: unknown message type '%s' from client %s", wsMessage.Type, client.UserID)
		m.sendErrorToClient(client, wsMessage.Subscription, "Unknown message type")
	}
}

func (m *Manager) handleSubscribe(client *Client, wsMessage WSMessage) {
	if wsMessage.Subscription == "" {
		m.sendErrorToClient(client, "", "Missing subscription id")
		return
	}
	owner, ok := InboxOwner(wsMessage.Destination)
	if !ok {
		m.sendErrorToClient(client, wsMessage.Subscription, "Unknown destination")
		return
	}
	if owner != client.UserID {
		logger.Warn("Broker: %s tried to subscribe to %s", client.UserID, wsMessage.Destination)
		m.sendErrorToClient(client, wsMessage.Subscription, "Cannot subscribe to another user's inbox")
		return
	}

	m.mutex.Lock()
	if _, registered := m.clients[client]; !registered {
		m.mutex.Unlock()
		return
	}
	if _, exists := client.subscriptions[wsMessage.Subscription]; !exists {
		m.metrics.Subscriptions.Inc()
	}
	client.subscriptions[wsMessage.Subscription] = wsMessage.Destination
	m.mutex.Unlock()

	logger.Debug("Broker: %s subscribed to %s (%s)", client.UserID, wsMessage.Destination, wsMessage.Subscription)
	m.sendToClient(client, MessageTypeSubscribed, wsMessage.Destination, wsMessage.Subscription, nil)
}

func (m *Manager) handleUnsubscribe(client *Client, wsMessage WSMessage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, registered := m.clients[client]; !registered {
		return
	}
	if _, exists := client.subscriptions[wsMessage.Subscription]; exists {
		delete(client.subscriptions, wsMessage.Subscription)
		m.metrics.Subscriptions.Dec()
	}
}

func (m *Manager) sendToClient(client *Client, msgType, destination, subscription string, data interface{}) {
	frame, err := encodeFrame(msgType, destination, subscription, data)
	if err != nil {
		logger.Error("Broker: failed to encode %s frame: %v", msgType, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, registered := m.clients[client]; !registered {
		return
	}
	select {
	case client.Send <- frame:
	default:
		logger.Warn("Broker: send buffer full for %s", client.UserID)
	}
}

func (m *Manager) sendErrorToClient(client *Client, subscription, errorMsg string) {
	m.sendToClient(client, MessageTypeError, "", subscription, ErrorData{
		Error:        errorMsg,
		Subscription: subscription,
	})
}
