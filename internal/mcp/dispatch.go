package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Error kinds reported in structured error payloads. Parameter and lookup
// errors are produced locally and never reach a store; store faults surface
// as handler_failure with the store name in the message.
const (
	errInvalidParams  = "invalid_params"
	errNotFound       = "not_found"
	errTimeout        = "timeout"
	errHandlerFailure = "handler_failure"
)

// successResult serializes a payload into a text tool result.
func successResult(payload any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult(errHandlerFailure, fmt.Sprintf("encode result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errorResult builds a structured error payload marked as a tool error.
// The transport layer keeps running; only the one request fails.
func errorResult(kind, message string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]string{
		"status":  "error",
		"error":   kind,
		"message": message,
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}

// outcome carries a handler's payload or error across the budget boundary.
type outcome struct {
	payload any
	err     error
}

// runWithBudget invokes fn under the per-request execution budget. If the
// budget elapses first, a timeout error is returned and the handler's
// eventual result is discarded — the buffered channel guarantees the
// abandoned goroutine can finish without blocking and without anything ever
// reading its stray result. Panics inside fn are recovered and reported as
// handler failures rather than killing the transport loop.
func (s *Server) runWithBudget(ctx context.Context, tool string, fn func(ctx context.Context) (any, error)) *mcp.CallToolResult {
	budget := s.cfg.RequestTimeout()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		payload, err := fn(ctx)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if kind, msg, ok := classifyError(out.err); ok {
				return errorResult(kind, msg)
			}
			return errorResult(errHandlerFailure, fmt.Sprintf("%s: %v", tool, out.err))
		}
		return successResult(out.payload)
	case <-ctx.Done():
		return errorResult(errTimeout, fmt.Sprintf("%s exceeded the %s execution budget", tool, budget))
	}
}

// dispatchError lets handlers return a pre-classified error kind from inside
// the budget closure.
type dispatchError struct {
	kind    string
	message string
}

func (e *dispatchError) Error() string { return e.message }

func invalidParams(format string, args ...any) error {
	return &dispatchError{kind: errInvalidParams, message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &dispatchError{kind: errNotFound, message: fmt.Sprintf(format, args...)}
}

func storeFailure(storeName string, err error) error {
	return &dispatchError{kind: errHandlerFailure, message: fmt.Sprintf("%s store: %v", storeName, err)}
}

func classifyError(err error) (kind, message string, ok bool) {
	var de *dispatchError
	if errors.As(err, &de) {
		return de.kind, de.message, true
	}
	return "", "", false
}
