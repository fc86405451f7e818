package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ActionPlan is what the reasoning model proposes for one user task.
type ActionPlan struct {
	Reasoning  string      `json:"reasoning"`
	UIElements []UIElement `json:"uiElements"`
	Actions    []Action    `json:"actions"`
}

type UIElement struct {
	Text        *string `json:"text"`
	Description string  `json:"description"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
}

// Center returns the middle of the element's bounding box.
func (e UIElement) Center() Point {
	return Point{X: (e.X1 + e.X2) / 2, Y: (e.Y1 + e.Y2) / 2}
}

type Action struct {
	ElementIndex *int        `json:"elementIndex"`
	Interaction  Interaction `json:"interaction"`
}

type ActionKind string

const (
	ActionNone     ActionKind = ""
	ActionClick    ActionKind = "click"
	ActionHover    ActionKind = "hover"
	ActionScroll   ActionKind = "scroll"
	ActionKeyPress ActionKind = "keyPress"
	ActionTypeText ActionKind = "typeText"
	ActionWait     ActionKind = "wait"
	ActionGoto     ActionKind = "goto"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) String() string {
	return "(" + formatCoord(p.X) + "," + formatCoord(p.Y) + ")"
}

type KeyPress struct {
	Key string `json:"key"`
}

type TypeText struct {
	Text string `json:"text"`
}

// Wait accepts both {"ms": 500} and a bare 500.
type Wait struct {
	Ms int `json:"ms"`
}

func (w *Wait) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var ms float64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		w.Ms = int(ms)
		return nil
	}
	var raw struct {
		Ms float64 `json:"ms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	w.Ms = int(raw.Ms)
	return nil
}

// Goto accepts both {"label": "exit"} and a bare "exit".
type Goto struct {
	Label string `json:"label"`
}

func (g *Goto) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var label any
		if err := json.Unmarshal(data, &label); err != nil {
			return fmt.Errorf("goto: %w", err)
		}
		g.Label = fmt.Sprint(label)
		return nil
	}
	var raw struct {
		Label any `json:"label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("goto: %w", err)
	}
	if raw.Label != nil {
		g.Label = fmt.Sprint(raw.Label)
	}
	return nil
}

// Interaction is a tagged variant. Exactly one field is expected to be set.
type Interaction struct {
	MouseHover  *Point    `json:"mouseHover,omitempty"`
	MouseClick  *Point    `json:"mouseClick,omitempty"`
	MouseScroll *Point    `json:"mouseScroll,omitempty"`
	KeyPress    *KeyPress `json:"keyPress,omitempty"`
	TypeText    *TypeText `json:"typeText,omitempty"`
	Wait        *Wait     `json:"wait,omitempty"`
	Goto        *Goto     `json:"goto,omitempty"`
}

// Kinds lists every populated case in execution priority order.
func (i Interaction) Kinds() []ActionKind {
	var kinds []ActionKind
	if i.MouseClick != nil {
		kinds = append(kinds, ActionClick)
	}
	if i.MouseHover != nil {
		kinds = append(kinds, ActionHover)
	}
	if i.MouseScroll != nil {
		kinds = append(kinds, ActionScroll)
	}
	if i.KeyPress != nil && i.KeyPress.Key != "" {
		kinds = append(kinds, ActionKeyPress)
	}
	if i.TypeText != nil && i.TypeText.Text != "" {
		kinds = append(kinds, ActionTypeText)
	}
	if i.Wait != nil {
		kinds = append(kinds, ActionWait)
	}
	if i.Goto != nil && i.Goto.Label != "" {
		kinds = append(kinds, ActionGoto)
	}
	return kinds
}

// Kind returns the case that will be performed, or ActionNone.
func (i Interaction) Kind() ActionKind {
	kinds := i.Kinds()
	if len(kinds) == 0 {
		return ActionNone
	}
	return kinds[0]
}

func (i Interaction) JSON() string {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ElementAnnotation is a located element as returned by the element finder.
type ElementAnnotation struct {
	Text                 *string `json:"text"`
	Description          string  `json:"description"`
	X                    float64 `json:"x"`
	Y                    float64 `json:"y"`
	UserRequestedToClick bool    `json:"userRequestedToClick"`
}

// CheckResult is a verdict about a requirement observed on a screenshot.
type CheckResult struct {
	Passed      bool   `json:"passed"`
	Explanation string `json:"explanation"`
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
