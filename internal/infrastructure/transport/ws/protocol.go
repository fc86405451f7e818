package ws

import (
	"encoding/json"
	"fmt"

	"script-agent/internal/domain/entity"
)

// Inbound message types.
const (
	TypeUserMessage    = "user_message"
	TypeUserScript     = "user_script"
	TypeNextStep       = "next_step"
	TypeSwitchToAuto   = "switch_to_auto"
	TypeSwitchToManual = "switch_to_step_by_step"
	TypeAbortExecution = "abort_execution"
	TypeEditStep       = "edit_step"
	TypeError          = "error"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type serverResponse struct {
	FunctionName string `json:"functionName,omitempty"`
	Payload      string `json:"payload"`
	Debug        bool   `json:"debug,omitempty"`
}

type editPayload struct {
	Text string `json:"text"`
}

// decodeHistory reads a user_message payload.
func decodeHistory(raw json.RawMessage) ([]entity.Message, error) {
	var wire []wireMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("invalid message history: %w", err)
	}
	history := make([]entity.Message, 0, len(wire))
	for _, m := range wire {
		history = append(history, entity.Message{Role: entity.MessageRole(m.Role), Content: m.Content})
	}
	return history, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("invalid string payload: %w", err)
	}
	return s, nil
}

// encodeEvent renders a bus event as an outbound frame.
func encodeEvent(e entity.Event) ([]byte, error) {
	var payload interface{}
	switch e.Type {
	case entity.EventServerResponse:
		payload = serverResponse{FunctionName: e.FunctionName, Payload: e.Text, Debug: e.Debug}
	case entity.EventBrowserScreenshot:
		if e.Screenshot == nil {
			return nil, fmt.Errorf("screenshot event without image")
		}
		payload = e.Screenshot.Base64()
	case entity.EventGoto:
		payload = e.Label
	case entity.EventScriptState:
		payload = e.Script
	case entity.EventFunctionCompleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return encode(string(e.Type), payload)
}

func encode(kind string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
