package mcp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// connectMaxRetries bounds how many times a failed connection attempt is
	// retried before Connect gives up.
	connectMaxRetries = 3
	// connectInitialInterval is the starting backoff interval between
	// connection attempts.
	connectInitialInterval = 500 * time.Millisecond
)

// Manager owns the single long-lived provider connection for an agent
// instance. Connect, Disconnect, and Invoke are mutually exclusive: an
// invocation attempted while a reconnect is in progress waits for it, and an
// invocation with no connection established fails with ErrNotConnected.
type Manager struct {
	mu     sync.Mutex
	client Client
	tools  []ToolDefinition
	logger zerolog.Logger

	// newClient is swappable for tests.
	newClient func(logger zerolog.Logger, command string, args, env []string) (Client, error)
}

// NewManager creates a Manager with no active connection.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "mcpManager").Logger(),
		newClient: func(logger zerolog.Logger, command string, args, env []string) (Client, error) {
			return NewStdioClient(logger, command, args, env)
		},
	}
}

// Connect spawns the provider subprocess and establishes a session,
// retrying transient startup failures with exponential backoff. An existing
// connection is closed first.
func (m *Manager) Connect(ctx context.Context, command string, args, env []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
		m.tools = nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newConnectBackOff(), connectMaxRetries), ctx)

	var connected Client
	operation := func() error {
		client, err := m.newClient(m.logger, command, args, env)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			m.logger.Warn().Err(err).Str("command", command).Msg("MCP connection attempt failed")
			return err
		}
		connected = client
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("connect to MCP server: %w", err)
	}

	tools, err := connected.ListTools(ctx)
	if err != nil {
		_ = connected.Close()
		return fmt.Errorf("list MCP tools: %w", err)
	}

	m.client = connected
	m.tools = tools
	m.logger.Info().Str("command", command).Int("tools", len(tools)).Msg("Connected to MCP server")
	return nil
}

// Disconnect closes the provider connection. Safe to call when already
// disconnected.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Close()
	m.client = nil
	m.tools = nil
	m.logger.Info().Msg("Disconnected from MCP server")
	return err
}

// IsConnected reports whether a provider connection is established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

// Tools returns the cached tool definitions from the connected provider.
func (m *Manager) Tools() []ToolDefinition {
	m.mu.Lock()
	defer m.mu.Unlock()
	tools := make([]ToolDefinition, len(m.tools))
	copy(tools, m.tools)
	return tools
}

// Invoke executes a capability by name. The connection lock is held for the
// duration of the call so invocation never races a reconnect or disconnect.
func (m *Manager) Invoke(ctx context.Context, name string, input map[string]interface{}) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client.InvokeTool(ctx, name, input)
}

func newConnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectInitialInterval
	return b
}
