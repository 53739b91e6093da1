// Package taskgraph expands symbolic references to prior task results inside
// a new task's input structure.
package taskgraph

import (
	"errors"
	"fmt"

	"analytics-orchestrator/internal/models"
)

// RefKey marks a placeholder: an object with this single key naming a prior
// task id is replaced by that task's full output payload.
const RefKey = "$fromTask"

var ErrUnknownTaskRef = errors.New("PLACEHOLDER_RESOLUTION_FAILED")

// Results is the lookup boundary for completed tasks.
type Results interface {
	ResultByID(taskID string) (models.TaskResult, bool)
}

// ResolvePlaceholders walks the task input (maps, slices, scalars, at any
// nesting depth) and substitutes each reference marker with the referenced
// result's output payload. Substituted payloads are not re-walked, so
// resolving twice yields the same value as resolving once. A marker naming
// an unknown task id fails the whole resolution; the input is never
// partially substituted in place.
func ResolvePlaceholders(input map[string]interface{}, completed Results) (map[string]interface{}, error) {
	if input == nil {
		return nil, nil
	}
	resolved, err := resolveValue(input, completed)
	if err != nil {
		return nil, err
	}
	return resolved.(map[string]interface{}), nil
}

func resolveValue(value interface{}, completed Results) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		if taskID, ok := refTarget(v); ok {
			result, found := completed.ResultByID(taskID)
			if !found {
				return nil, fmt.Errorf("%w: task %q has no recorded result", ErrUnknownTaskRef, taskID)
			}
			return copyPayload(result.Output), nil
		}
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			resolved, err := resolveValue(val, completed)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			resolved, err := resolveValue(val, completed)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// refTarget reports whether an object is a reference marker and, if so, the
// task id it names. Only a single-key object with a string value qualifies;
// anything else is ordinary data.
func refTarget(obj map[string]interface{}) (string, bool) {
	if len(obj) != 1 {
		return "", false
	}
	raw, ok := obj[RefKey]
	if !ok {
		return "", false
	}
	taskID, ok := raw.(string)
	return taskID, ok
}

// copyPayload deep-copies a result payload so later tasks cannot alias the
// stored result's maps.
func copyPayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return copyPayload(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return value
	}
}
