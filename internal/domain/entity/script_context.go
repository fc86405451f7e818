package entity

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

type ParameterScope string

const (
	ScopeInput  ParameterScope = "in"
	ScopeOutput ParameterScope = "out"
)

// A parameter name is any token without braces or "=". Surrounding
// whitespace inside the braces is not part of the name.
var (
	assignmentPattern   = regexp.MustCompile(`{{([^{}=]+)}}=(.+)`)
	placeholderPattern  = regexp.MustCompile(`{{([^{}=]+)}}`)
	assignmentMaskRegex = regexp.MustCompile(`^(\s*{{[^{}=]+}}=).*$`)
)

// ScriptContext holds the named input and output parameters of one session.
type ScriptContext struct {
	mu       sync.RWMutex
	inputs   map[string]string
	outputs  map[string]string
	onChange func(scope ParameterScope, name, value string)
}

func NewScriptContext() *ScriptContext {
	return &ScriptContext{
		inputs:  make(map[string]string),
		outputs: make(map[string]string),
	}
}

// OnChange registers a write-through hook called after every Set.
func (c *ScriptContext) OnChange(fn func(scope ParameterScope, name, value string)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *ScriptContext) SetInput(name, value string) {
	c.set(ScopeInput, name, value)
}

func (c *ScriptContext) SetOutput(name, value string) {
	c.set(ScopeOutput, name, value)
}

func (c *ScriptContext) set(scope ParameterScope, name, value string) {
	c.mu.Lock()
	if scope == ScopeInput {
		c.inputs[name] = value
	} else {
		c.outputs[name] = value
	}
	hook := c.onChange
	c.mu.Unlock()

	if hook != nil {
		hook(scope, name, value)
	}
}

func (c *ScriptContext) Input(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.inputs[name]
	return v, ok
}

func (c *ScriptContext) Output(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.outputs[name]
	return v, ok
}

// Restore merges previously persisted parameters into the context.
func (c *ScriptContext) Restore(inputs, outputs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range inputs {
		c.inputs[k] = v
	}
	for k, v := range outputs {
		c.outputs[k] = v
	}
}

// Snapshot returns copies of both maps.
func (c *ScriptContext) Snapshot() (inputs, outputs map[string]string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inputs = make(map[string]string, len(c.inputs))
	for k, v := range c.inputs {
		inputs[k] = v
	}
	outputs = make(map[string]string, len(c.outputs))
	for k, v := range c.outputs {
		outputs[k] = v
	}
	return inputs, outputs
}

// Substitute replaces every {{name}} with the input value for name.
// Unknown names become empty strings. Substituted values are not rescanned.
func (c *ScriptContext) Substitute(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		return c.inputs[strings.TrimSpace(token[2:len(token)-2])]
	})
}

// SubstituteMessages applies Substitute to the content of user messages.
func (c *ScriptContext) SubstituteMessages(history []Message) []Message {
	out := make([]Message, len(history))
	for i, m := range history {
		if m.Role == RoleUser {
			m.Content = c.Substitute(m.Content)
		}
		out[i] = m
	}
	return out
}

// Render produces an audit listing of {{name}}=value lines, inputs first.
func (c *ScriptContext) Render() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var sb strings.Builder
	writeSorted(&sb, c.inputs)
	writeSorted(&sb, c.outputs)
	return strings.TrimSuffix(sb.String(), "\n")
}

func writeSorted(sb *strings.Builder, m map[string]string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString("{{" + name + "}}=" + m[name] + "\n")
	}
}

// ParseAssignment recognizes a {{name}}=value command.
func ParseAssignment(command string) (name, value string, ok bool) {
	m := assignmentPattern.FindStringSubmatch(command)
	if m == nil {
		return "", "", false
	}
	name = strings.TrimSpace(m[1])
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(m[2]), true
}

// ValidParameterName reports whether name can be written as {{name}}.
func ValidParameterName(name string) bool {
	return strings.TrimSpace(name) == name && name != "" && !strings.ContainsAny(name, "{}=")
}

// MaskAssignment hides the value of an assignment command, leaving "{{name}}=".
func MaskAssignment(command string) string {
	if !assignmentPattern.MatchString(command) {
		return command
	}
	return assignmentMaskRegex.ReplaceAllString(command, "$1")
}
