package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskhive/taskhive/pkg/apperrors"
)

// Stable error codes surfaced to tool callers.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "RESOURCE_NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeDatabase   = "DATABASE_ERROR"
)

// Envelope is the uniform tool response shape. Successful calls carry
// data and optional metadata; failures carry a structured error so the
// caller can react to the code instead of parsing prose.
type Envelope struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Data     any            `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody is the failure payload inside an envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewSuccessResult wraps data in a success envelope.
func NewSuccessResult(message string, data any, metadata map[string]any) *mcp.CallToolResult {
	env := Envelope{
		Success:  true,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	}
	jsonBytes, _ := json.Marshal(env)
	return mcp.NewToolResultText(string(jsonBytes))
}

// NewErrorResult creates a failure envelope with an explicit code.
func NewErrorResult(code, message string, details any) *mcp.CallToolResult {
	env := Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	}
	jsonBytes, _ := json.Marshal(env)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultFromErr maps a domain error onto the stable code set.
// Anything unclassified is reported as a database error; the original
// message is preserved for diagnosis.
func NewErrorResultFromErr(err error) *mcp.CallToolResult {
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		return NewErrorResult(CodeValidation, validationErr.Message, validationErr.Details)
	}

	switch {
	case apperrors.IsValidation(err):
		return NewErrorResult(CodeValidation, err.Error(), nil)
	case apperrors.IsNotFound(err):
		return NewErrorResult(CodeNotFound, err.Error(), nil)
	case apperrors.IsConflict(err):
		return NewErrorResult(CodeConflict, err.Error(), nil)
	}
	return NewErrorResult(CodeDatabase, err.Error(), nil)
}
