package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"holachat/pkg/errors"
)

// Message is the normalized form every ingestion path produces. ID is zero
// until the server has acknowledged the message.
type Message struct {
	ID         int64  `json:"message_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func (m Message) HasID() bool {
	return m.ID != 0
}

// CounterpartOf returns whichever participant is not localUserID.
func (m Message) CounterpartOf(localUserID string) string {
	if m.SenderID == localUserID {
		return m.ReceiverID
	}
	return m.SenderID
}

// MessageRecord is the wire shape returned by the REST collaborator and the
// broker. Participant fields arrive as plain ids or as nested user objects.
type MessageRecord struct {
	MessageID  FlexibleInt    `json:"message_id"`
	SenderID   UserRef        `json:"sender_id"`
	ReceiverID UserRef        `json:"receiver_id"`
	Content    *string        `json:"content"`
	CreatedAt  FlexibleString `json:"created_at"`
}

// Normalize unwraps nested participants and validates the record.
func (r MessageRecord) Normalize() (Message, error) {
	if r.SenderID == "" || r.ReceiverID == "" {
		return Message{}, errors.Malformed("message record is missing a participant", nil)
	}

	msg := Message{
		ID:         int64(r.MessageID),
		SenderID:   string(r.SenderID),
		ReceiverID: string(r.ReceiverID),
		CreatedAt:  string(r.CreatedAt),
	}
	if r.Content != nil {
		msg.Content = *r.Content
	}
	return msg, nil
}

// DecodeMessage decodes and normalizes a single JSON record.
func DecodeMessage(data []byte) (Message, error) {
	var rec MessageRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Message{}, errors.Malformed("undecodable message record", err)
	}
	return rec.Normalize()
}

// UserRef is a participant id. It accepts "7", 7 and {"id": "7", ...}.
type UserRef string

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*r = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = UserRef(strings.TrimSpace(s))
	case '{':
		var nested struct {
			ID UserRef `json:"id"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return err
		}
		*r = nested.ID
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("user reference: %w", err)
		}
		*r = UserRef(n.String())
	}
	return nil
}

// FlexibleInt accepts a JSON number or a numeric string. null decodes to 0.
type FlexibleInt int64

func (i *FlexibleInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*i = 0
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*i = 0
			return nil
		}
	}

	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*i = FlexibleInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int64(f)) {
		return fmt.Errorf("message id %q is not an integer", raw)
	}
	*i = FlexibleInt(int64(f))
	return nil
}

// FlexibleString keeps timestamps opaque: strings pass through, numbers keep
// their literal text, null is empty.
type FlexibleString string

func (s *FlexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexibleString(v)
		return nil
	}
	*s = FlexibleString(data)
	return nil
}
