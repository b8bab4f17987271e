package tools

import "fmt"

type ToolError struct {
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

// NewToolNotFoundError reports an unknown tool name. This is a
// dispatch failure inside tools/call, so it carries the internal error
// code; -32601 stays reserved for unknown protocol methods.
func NewToolNotFoundError(name string) *ToolError {
	return &ToolError{
		Code:    -32603,
		Message: fmt.Sprintf("Tool not found: %s", name),
	}
}

func NewToolExecutionError(name string, err error) *ToolError {
	return &ToolError{
		Code:    -32603,
		Message: fmt.Sprintf("Error executing tool %s: %v", name, err),
	}
}
