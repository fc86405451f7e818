package entity

import "strings"

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// DebugPrefix marks progress messages that carry diagnostics only.
const DebugPrefix = "////"

// ScriptMarkerPrefix marks the transcript entry written when a script is submitted.
const ScriptMarkerPrefix = "script"

type Message struct {
	Role       MessageRole  `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []ToolCall   `json:"-"`
	ToolCallID string       `json:"-"`
	Name       string       `json:"-"`
	Images     []Screenshot `json:"-"`
}

type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// IsDebug reports whether the message is a diagnostic line that must not reach the model.
func (m Message) IsDebug() bool {
	return strings.HasPrefix(m.Content, DebugPrefix)
}

// IsScriptMarker reports whether the message records a script submission.
func (m Message) IsScriptMarker() bool {
	return strings.HasPrefix(m.Content, ScriptMarkerPrefix)
}

// LastUserContent returns the content of the most recent user message.
func LastUserContent(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// ConversationOnly drops system messages, script markers and debug lines.
func ConversationOnly(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.Role == RoleSystem || m.IsScriptMarker() || m.IsDebug() {
			continue
		}
		out = append(out, m)
	}
	return out
}
