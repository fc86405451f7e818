package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/domain/entity"
)

var _ input.ScriptExtractor = (*Extractor)(nil)

var errNoSteps = errors.New("extracted script has no steps")

// Extractor turns a session transcript into a replayable script.
type Extractor struct {
	llm    output.LLMPort
	logger output.LoggerPort
}

func New(llm output.LLMPort, logger output.LoggerPort) *Extractor {
	return &Extractor{
		llm:    llm,
		logger: logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, history []entity.Message) (*entity.Script, error) {
	conversation, err := transcript(history)
	if err != nil {
		return nil, err
	}
	if conversation == "[]" {
		return nil, fmt.Errorf("nothing to extract: %w", entity.ErrEmptyScript)
	}

	resp, err := e.llm.Chat(ctx, output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleUser, Content: buildExtractionPrompt(conversation)},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction llm request failed: %w", err)
	}

	script, err := parseScript(resp.Message.Content)
	if err != nil {
		e.logger.Warn("Failed to parse extracted script", "error", err)
		return nil, err
	}

	e.logger.Info("Script extracted",
		"title", script.Title,
		"steps", len(script.Steps),
		"inputs", len(script.InputParameters),
		"outputs", len(script.OutputParameters),
	)
	return script, nil
}

type transcriptEntry struct {
	Role    entity.MessageRole `json:"role"`
	Name    string             `json:"name,omitempty"`
	Content string             `json:"content"`
}

// transcript serializes the conversation without diagnostics or images.
func transcript(history []entity.Message) (string, error) {
	entries := make([]transcriptEntry, 0, len(history))
	for _, m := range history {
		if m.Role == entity.RoleSystem || m.IsDebug() || strings.TrimSpace(m.Content) == "" {
			continue
		}
		entries = append(entries, transcriptEntry{Role: m.Role, Name: m.Name, Content: m.Content})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %w", err)
	}
	return string(raw), nil
}

func parseScript(response string) (*entity.Script, error) {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var script entity.Script
	if err := json.Unmarshal([]byte(response[start:end+1]), &script); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if len(script.Commands()) == 0 {
		return nil, errNoSteps
	}
	return &script, nil
}

func buildExtractionPrompt(conversation string) string {
	return `Extract JSON script from this conversation:

Conversation:
` + "```\n" + conversation + "\n```" + `
If there is obvious personal information in the conversation, anonymize it in the result script.
Add additional steps at the beginning for initializing script input parameters if needed.
Preserve user input that comes to enterTextValue function.
Preserve all comments into steps.
Do not add any unnecessary steps, input or output parameters.

Example of expected format for this script:
{
  "title": "Extract Famous Person Age",
  "description": "This script visits Google, searches for a famous person's age, and retrieves the age from the search results.",
  "inputParameters": [
    {
      "name": "in_famousPersonName",
      "description": "The name of the famous person whose age you want to find.",
      "possible_value": "Brad Pitt"
    }
  ],
  "outputParameters": [
    {
      "name": "out_famousPersonAge",
      "description": "Found age in years",
      "possible_value": "61"
    }
  ],
  "steps": [
    {
      "command": "{{in_famousPersonName}}=",
      "possible_answer": "setInputParameter function answers: {{in_famousPersonName}} is linked to the script context."
    },
    {
      "command": "visit https://www.google.com",
      "possible_answer": "visitUrl function answers: Visited https://www.google.com"
    },
    {
      "command": "find main input",
      "possible_answer": "findUIelements function answers: [{ 'text': null, 'description': 'Main Google search input field', 'x': 498, 'y': 351 }]"
    },
    {
      "command": "click it",
      "possible_answer": "clickCoordinates function answers: Successfully clicked at coordinates (498, 351)."
    },
    {
      "command": "enter {{in_famousPersonName}} age",
      "possible_answer": "enterTextValue function answers: Successfully entered text."
    },
    {
      "command": "press enter",
      "possible_answer": "pressKey function answers: Successfully pressed key 'Enter' on the currently focused element."
    },
    {
      "command": "output found age years to {{out_famousPersonAge}}",
      "possible_answer": "setOutputParameter function answers: Set output parameter: 'out_famousPersonAge' = 61 years."
    }
  ]
}`
}
