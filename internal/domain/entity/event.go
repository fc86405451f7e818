package entity

import "time"

type EventType string

const (
	EventServerResponse    EventType = "server_response"
	EventBrowserScreenshot EventType = "browser_screenshot"
	EventFunctionCompleted EventType = "function_completed"
	EventGoto              EventType = "goto"
	EventScriptState       EventType = "script_state"
)

// Event is one outbound notification of a session.
type Event struct {
	ID        string
	SessionID string
	Type      EventType
	Time      time.Time

	FunctionName string
	Text         string
	Debug        bool
	Label        string
	Screenshot   *Screenshot
	Script       *ScriptState
}

// Droppable reports whether observers may skip the event under backpressure.
func (e Event) Droppable() bool {
	return e.Type == EventBrowserScreenshot
}

type StepMode string

const (
	ModeManual StepMode = "manual"
	ModeAuto   StepMode = "auto"
)

// ScriptState is the observable state of the script stepper.
type ScriptState struct {
	Commands []string `json:"commands"`
	Cursor   int      `json:"cursor"`
	Mode     StepMode `json:"mode"`
	Busy     bool     `json:"busy"`
}
