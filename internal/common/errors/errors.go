// Package errors provides standardized error handling for the orchestration engine.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Task-local failure codes. These are recorded on failed task results and
// never abort the session.
const (
	ErrCodeUnknownCapability           ErrorCode = "UNKNOWN_CAPABILITY"
	ErrCodePlaceholderResolutionFailed ErrorCode = "PLACEHOLDER_RESOLUTION_FAILED"
	ErrCodeCapabilityExecutionFailed   ErrorCode = "CAPABILITY_EXECUTION_FAILED"
	ErrCodeCapabilityInputInvalid      ErrorCode = "CAPABILITY_INPUT_INVALID"
	ErrCodeEntitySelectionInvalid      ErrorCode = "ENTITY_SELECTION_INVALID"
)

// Session-level codes.
const (
	ErrCodeLoopCeilingExceeded ErrorCode = "LOOP_CEILING_EXCEEDED"
	ErrCodeSessionCancelled    ErrorCode = "SESSION_CANCELLED"
)

// Infrastructure codes. These propagate out of the loop to the caller.
const (
	ErrCodeEntityStoreUnavailable ErrorCode = "ENTITY_STORE_UNAVAILABLE"
	ErrCodeOracleUnavailable      ErrorCode = "ORACLE_UNAVAILABLE"
	ErrCodeOracleDecisionInvalid  ErrorCode = "ORACLE_DECISION_INVALID"
	ErrCodeOracleTimeout          ErrorCode = "ORACLE_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout            ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeCubeQueryFailed          ErrorCode = "CUBE_QUERY_FAILED"
	ErrCodeLLMTimeout               ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRequestFailed         ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewUnknownCapabilityError creates a non-retryable dispatch error.
func NewUnknownCapabilityError(name string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownCapability,
		Message:   "Capability not present in registry",
		Details:   fmt.Sprintf("capability: %s", name),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlaceholderResolutionError creates a non-retryable task input error.
func NewPlaceholderResolutionError(taskID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePlaceholderResolutionFailed,
		Message:   "Task input references a task id with no recorded result",
		Details:   fmt.Sprintf("referenced task: %s", taskID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapabilityExecutionError wraps a capability-internal failure.
func NewCapabilityExecutionError(capability string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapabilityExecutionFailed,
		Message:   "Capability execution failed",
		Details:   fmt.Sprintf("capability: %s, error: %s", capability, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCapabilityInputInvalidError creates a non-retryable schema violation error.
func NewCapabilityInputInvalidError(capability, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCapabilityInputInvalid,
		Message:   "Task input violates the capability's declared input schema",
		Details:   fmt.Sprintf("capability: %s, %s", capability, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntitySelectionInvalidError creates a non-retryable selection error.
func NewEntitySelectionInvalidError(entityRef, candidateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntitySelectionInvalid,
		Message:   "Entity selection names a candidate id not present in the candidate list",
		Details:   fmt.Sprintf("entity: %s, candidate: %s", entityRef, candidateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLoopCeilingExceededError records a ceiling breach. It is handled as a
// designed transition to COMPLETE, not propagated as an exception.
func NewLoopCeilingExceededError(ceiling int) *StandardError {
	return &StandardError{
		Code:      ErrCodeLoopCeilingExceeded,
		Message:   "Maximum orchestration iterations reached",
		Details:   fmt.Sprintf("ceiling: %d", ceiling),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEntityStoreUnavailableError creates a retryable infrastructure error.
func NewEntityStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEntityStoreUnavailable,
		Message:   "Entity store unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleUnavailableError creates a retryable infrastructure error.
func NewOracleUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleUnavailable,
		Message:   "Decision oracle unreachable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleTimeoutError creates a retryable timeout error.
func NewOracleTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleTimeout,
		Message:   "Decision oracle timed out",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleDecisionInvalidError creates a non-retryable decision shape error.
func NewOracleDecisionInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleDecisionInvalid,
		Message:   "Decision oracle returned a malformed decision",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable delivery error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
