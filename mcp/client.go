// Package mcp wraps the external capability provider: an MCP server reached
// over stdio that exposes invokable tools.
package mcp

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when an invocation is attempted while no
// provider connection is established (or a reconnect is in progress).
var ErrNotConnected = errors.New("mcp: not connected")

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Client is the interface for interacting with an MCP server.
type Client interface {
	// Start initializes and starts the MCP client connection.
	Start(ctx context.Context) error

	// ListTools returns all tools available from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool invokes a tool on the MCP server with the given input.
	// The return shape is provider-specific; the capability bridge
	// normalizes it.
	InvokeTool(ctx context.Context, name string, input map[string]interface{}) (any, error)

	// Close closes the connection to the MCP server.
	Close() error
}
