package reasoning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"script-agent/internal/domain/entity"
)

// extractJSON cuts the outermost JSON object (or array) out of a model reply
// that may be wrapped in prose or code fences.
func extractJSON(response string, open, close byte) (string, error) {
	response = strings.TrimSpace(response)

	start := strings.IndexByte(response, open)
	end := strings.LastIndexByte(response, close)
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON found in response")
	}
	return response[start : end+1], nil
}

// ParsePlan decodes an action plan from a model reply.
func ParsePlan(response string) (*entity.ActionPlan, error) {
	jsonStr, err := extractJSON(response, '{', '}')
	if err != nil {
		return nil, &entity.PlanParseError{Raw: response, Cause: err}
	}

	var plan entity.ActionPlan
	if err := json.Unmarshal([]byte(jsonStr), &plan); err != nil {
		return nil, &entity.PlanParseError{Raw: response, Cause: fmt.Errorf("failed to parse JSON: %w", err)}
	}
	return &plan, nil
}

func parseAnnotations(response string) ([]entity.ElementAnnotation, error) {
	if obj, err := extractJSON(response, '{', '}'); err == nil {
		var wrapped struct {
			Elements []entity.ElementAnnotation `json:"elements"`
		}
		if err := json.Unmarshal([]byte(obj), &wrapped); err == nil && wrapped.Elements != nil {
			return wrapped.Elements, nil
		}
	}

	arr, err := extractJSON(response, '[', ']')
	if err != nil {
		return nil, err
	}
	var elements []entity.ElementAnnotation
	if err := json.Unmarshal([]byte(arr), &elements); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return elements, nil
}

var errNoVerdict = errors.New("no verdict in response")

func parseVerdict(response string) (*entity.CheckResult, error) {
	jsonStr, err := extractJSON(response, '{', '}')
	if err != nil {
		return nil, errNoVerdict
	}

	var raw struct {
		Passed      *bool  `json:"passed"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if raw.Passed == nil {
		return nil, errNoVerdict
	}
	return &entity.CheckResult{Passed: *raw.Passed, Explanation: raw.Explanation}, nil
}
