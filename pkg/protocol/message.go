// Package protocol defines the event messages the robot publishes to
// observers (dashboard websocket, MQTT, remote websocket clients).
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of event message
type MessageType string

const (
	TypeListening  MessageType = "listening"  // Voice confirmed after wake, capture starts
	TypeWake       MessageType = "wake"       // Wake phrase detected
	TypeTranscript MessageType = "transcript" // Recognizer output
	TypeReply      MessageType = "reply"      // Generator output
	TypeState      MessageType = "state"      // Turn state change
	TypeBlink      MessageType = "blink"      // Idle blink fired
	TypeTurn       MessageType = "turn"       // Completed turn with stage latencies
	TypeShutdown   MessageType = "shutdown"   // Loop is exiting
)

// Message is the envelope for every event
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	TurnID    string          `json:"turn_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, turnID string, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		TurnID:    turnID,
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// Time returns the timestamp as time.Time.
func (m *Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: message without type")
	}
	return &msg, nil
}

// ListeningData is sent once voice activity confirms a wake.
type ListeningData struct {
	WindowMs int `json:"window_ms"`
}

// WakeData reports a wake detection.
type WakeData struct {
	Detector string `json:"detector"`
}

// TranscriptData carries the recognized text. Display has the wake phrase
// stripped; Text is what the generator received.
type TranscriptData struct {
	Text    string `json:"text"`
	Display string `json:"display,omitempty"`
}

// ReplyData carries the generated reply.
type ReplyData struct {
	Text string `json:"text"`
}

// StateData reports a state transition.
type StateData struct {
	State    string `json:"state"`
	Previous string `json:"previous,omitempty"`
}

// BlinkData reports an idle blink.
type BlinkData struct {
	Target string `json:"target"`
	Error  string `json:"error,omitempty"`
}

// TurnData summarizes a finished turn.
type TurnData struct {
	Outcome     string `json:"outcome"`
	WakeToVADMs int64  `json:"wake_to_vad_ms"`
	CaptureMs   int64  `json:"capture_ms"`
	ASRMs       int64  `json:"asr_ms"`
	LLMMs       int64  `json:"llm_ms"`
	TTSMs       int64  `json:"tts_ms"`
	TotalMs     int64  `json:"total_ms"`
}

// ShutdownData reports why the loop stopped.
type ShutdownData struct {
	Reason string `json:"reason"`
}
