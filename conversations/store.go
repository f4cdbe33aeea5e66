// Package conversations persists turn messages to SQLite and reconstructs
// prior history for follow-up turns.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/backlane/agentstream/llm"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

// Store handles persistence of conversation messages.
// It implements agent.MessagePersister.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// AppendUserMessage saves a user text message to the conversation history.
func (s *Store) AppendUserMessage(ctx context.Context, threadID, content string) error {
	return s.appendText(ctx, threadID, roleUser, content)
}

// AppendAssistantMessage saves an assistant text-only message to the
// conversation history.
func (s *Store) AppendAssistantMessage(ctx context.Context, threadID, content string) error {
	return s.appendText(ctx, threadID, roleAssistant, content)
}

func (s *Store) appendText(ctx context.Context, threadID, role, content string) error {
	now := time.Now().Unix()
	query := sq.Insert("conversations").
		Columns("thread_id", "role", "content", "tool_name", "created_at").
		Values(threadID, role, content, nil, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// AppendToolCall saves a requested capability invocation.
// Uses INSERT OR IGNORE to prevent duplicate tool_use IDs in case of
// crashes/restarts.
func (s *Store) AppendToolCall(ctx context.Context, threadID, toolID, toolName string, input any) error {
	toolUseData := map[string]interface{}{
		"id":    toolID,
		"input": input,
		"name":  toolName,
	}
	contentJSON, err := json.Marshal(toolUseData)
	if err != nil {
		return fmt.Errorf("marshal tool use data: %w", err)
	}

	return s.appendToolRow(ctx, threadID, roleAssistant, string(contentJSON), toolName, toolID)
}

// AppendToolResult saves the result of a capability invocation.
// Uses INSERT OR IGNORE to prevent duplicate tool results in case of
// crashes/restarts; the unique index allows one 'assistant' row and one
// 'tool' row per tool_id.
func (s *Store) AppendToolResult(ctx context.Context, threadID, toolID, toolName, content string, isError bool) error {
	toolResultData := map[string]interface{}{
		"id":       toolID,
		"result":   content,
		"is_error": isError,
	}
	contentJSON, err := json.Marshal(toolResultData)
	if err != nil {
		return fmt.Errorf("marshal tool result data: %w", err)
	}

	return s.appendToolRow(ctx, threadID, roleTool, string(contentJSON), toolName, toolID)
}

func (s *Store) appendToolRow(ctx context.Context, threadID, role, content, toolName, toolID string) error {
	now := time.Now().Unix()
	query := sq.Insert("conversations").
		Columns("thread_id", "role", "content", "tool_name", "tool_id", "created_at").
		Values(threadID, role, content, toolName, toolID, now)

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	// SQLite requires "OR IGNORE" to come after "INSERT", so we replace
	// "INSERT INTO" with "INSERT OR IGNORE INTO"
	queryStr = strings.Replace(queryStr, "INSERT INTO", "INSERT OR IGNORE INTO", 1)

	_, err = s.db.ExecContext(ctx, queryStr, args...)
	return err
}

// History reconstructs a thread's messages in insertion order. Consecutive
// rows sharing an API role are merged into one multi-segment message so the
// result replays cleanly as request history.
func (s *Store) History(ctx context.Context, threadID string) ([]llm.Message, error) {
	query := sq.Select("role", "content", "tool_id").
		From("conversations").
		Where(sq.Eq{"thread_id": threadID}).
		OrderBy("created_at ASC", "id ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []llm.Message
	for rows.Next() {
		var role, content string
		var toolID sql.NullString
		if err := rows.Scan(&role, &content, &toolID); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		msgRole, block, ok := rowToSegment(role, content, toolID)
		if !ok {
			continue
		}
		if n := len(messages); n > 0 && messages[n-1].Role == msgRole {
			messages[n-1].Content = append(messages[n-1].Content, block)
		} else {
			messages = append(messages, llm.Message{Role: msgRole, Content: []llm.ContentBlock{block}})
		}
	}
	return messages, rows.Err()
}

// rowToSegment maps one stored row to an API-role message segment. Tool
// results replay under the user role, as the API expects.
func rowToSegment(role, content string, toolID sql.NullString) (llm.MessageRole, llm.ContentBlock, bool) {
	switch role {
	case roleUser:
		return llm.RoleUser, llm.ContentBlock{Type: llm.ContentBlockTypeText, Text: content}, true

	case roleAssistant:
		if !toolID.Valid {
			return llm.RoleAssistant, llm.ContentBlock{Type: llm.ContentBlockTypeText, Text: content}, true
		}
		var stored struct {
			ID    string                 `json:"id"`
			Name  string                 `json:"name"`
			Input map[string]interface{} `json:"input"`
		}
		if err := json.Unmarshal([]byte(content), &stored); err != nil {
			return "", llm.ContentBlock{}, false
		}
		input := stored.Input
		if input == nil {
			input = map[string]interface{}{}
		}
		return llm.RoleAssistant, llm.ContentBlock{
			Type:    llm.ContentBlockTypeToolUse,
			ToolUse: &llm.ToolUseBlock{ID: stored.ID, Name: stored.Name, Input: input},
		}, true

	case roleTool:
		var stored struct {
			ID      string `json:"id"`
			Result  string `json:"result"`
			IsError bool   `json:"is_error"`
		}
		if err := json.Unmarshal([]byte(content), &stored); err != nil {
			return "", llm.ContentBlock{}, false
		}
		return llm.RoleUser, llm.ContentBlock{
			Type:       llm.ContentBlockTypeToolResult,
			ToolResult: &llm.ToolResultBlock{ID: stored.ID, Content: stored.Result, IsError: stored.IsError},
		}, true
	}
	return "", llm.ContentBlock{}, false
}
