package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WebSocket Message Types
const (
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeSubscribed  = "subscribed"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeMessage     = "message"
	MessageTypeError       = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// WSMessage is the envelope of every frame in both directions.
type WSMessage struct {
	Type         string          `json:"type"`
	Destination  string          `json:"destination,omitempty"`
	Subscription string          `json:"subscription,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Timestamp    string          `json:"timestamp"`
}

type ErrorData struct {
	Error        string `json:"error"`
	Subscription string `json:"subscription,omitempty"`
}

// InboxDestination is the per-user queue the broker pushes messages to.
func InboxDestination(userID string) string {
	return fmt.Sprintf("/user/%s/queue/messages", userID)
}

// InboxOwner extracts the user id from an inbox destination.
func InboxOwner(destination string) (string, bool) {
	rest, ok := strings.CutPrefix(destination, "/user/")
	if !ok {
		return "", false
	}
	owner, ok := strings.CutSuffix(rest, "/queue/messages")
	if !ok || owner == "" || strings.Contains(owner, "/") {
		return "", false
	}
	return owner, true
}

// encodeFrame builds a frame; data may be nil, raw JSON or any marshalable
// value.
func encodeFrame(msgType, destination, subscription string, data interface{}) ([]byte, error) {
	frame := WSMessage{
		Type:         msgType,
		Destination:  destination,
		Subscription: subscription,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	switch d := data.(type) {
	case nil:
	case json.RawMessage:
		frame.Data = d
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		frame.Data = raw
	}

	return json.Marshal(frame)
}
