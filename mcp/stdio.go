package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// StdioClient implements Client for a subprocess MCP server over stdio.
type StdioClient struct {
	client  *client.Client
	command string
	args    []string
	logger  zerolog.Logger
}

// NewStdioClient creates a stdio MCP client. A command containing spaces is
// split into command and leading arguments.
func NewStdioClient(logger zerolog.Logger, command string, args, env []string) (*StdioClient, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for stdio MCP client")
	}

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(parts[1:], args...)

	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	return &StdioClient{
		client:  mcpClient,
		command: cmd,
		args:    cmdArgs,
		logger:  logger.With().Str("component", "stdioMCPClient").Str("command", cmd).Logger(),
	}, nil
}

// Start initializes the MCP session and starts the transport.
func (c *StdioClient) Start(ctx context.Context) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "agentstream",
				Version: "1.0.0",
			},
		},
	}

	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		c.logger.Error().Err(err).Msg("Initialize failed")
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	if err := c.client.Start(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Start failed")
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	c.logger.Info().Msg("MCP client started")
	return nil
}

// ListTools returns all tools available from the MCP server.
func (c *StdioClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Info().Int("tool_count", len(result.Tools)).Msg("Received tools from MCP server")

	tools := lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		inputSchema := map[string]interface{}{
			"type": tool.InputSchema.Type,
		}
		if tool.InputSchema.Properties != nil {
			inputSchema["properties"] = tool.InputSchema.Properties
		}
		if len(tool.InputSchema.Required) > 0 {
			inputSchema["required"] = tool.InputSchema.Required
		}

		return ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: inputSchema,
		}
	})

	return tools, nil
}

// InvokeTool invokes a tool on the MCP server and returns the raw call
// result for the bridge to normalize.
func (c *StdioClient) InvokeTool(ctx context.Context, name string, input map[string]interface{}) (any, error) {
	c.logger.Debug().Str("tool_name", name).Msg("Invoking tool on MCP server")

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}
	return result, nil
}

// Close closes the connection to the MCP server.
func (c *StdioClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
