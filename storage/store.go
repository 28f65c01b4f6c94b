// Package storage provides persistence for conversations, project files,
// and generation events.
//
// The Store interface is the exact call contract the agent core depends on.
// Implementations are treated as opaque and transactional per call; the
// core never assumes anything about the backing engine beyond this
// contract.
package storage

import (
	"context"
	"errors"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("storage: not found")

// MessageContext is the conversation context loaded for an agent run:
// the owning project and the ordered prior messages.
type MessageContext struct {
	ProjectID string
	Messages  []llm.ChatMessage
}

// Store is the persistence collaborator contract.
//
// Write operations are idempotent on retry. AppendToolCall,
// AppendToolResult, and AppendGenerationEvent are append-only event logs so
// a client reconnecting mid-run can reconstruct full history.
type Store interface {
	// Conversation operations.
	GetMessageContext(ctx context.Context, messageID string) (MessageContext, error)
	CreateMessage(ctx context.Context, projectID, role, content string) (model.Message, error)
	UpdateMessageContent(ctx context.Context, messageID, content string) error
	// StreamMessageContent overwrites the message content with a cumulative
	// partial; isComplete marks the terminal write so consumers can
	// distinguish "still streaming" from "done".
	StreamMessageContent(ctx context.Context, messageID, content string, isComplete bool) error
	SetMessageStatus(ctx context.Context, messageID string, status model.RunStatus) error
	CancelMessage(ctx context.Context, messageID string) error
	// GetProcessingMessages returns messages currently in the running state
	// for the project. Used to enforce at-most-one in-flight run.
	GetProcessingMessages(ctx context.Context, projectID string) ([]model.Message, error)

	// Append-only event log.
	AppendToolCall(ctx context.Context, messageID string, call llm.ToolCall) error
	AppendToolResult(ctx context.Context, messageID, toolCallID, result string) error
	AppendGenerationEvent(ctx context.Context, event model.GenerationEvent) error

	// Project file CRUD keyed by project + path.
	ReadFileByPath(ctx context.Context, projectID, path string) (model.File, error)
	WriteFileByPath(ctx context.Context, projectID, path, content string) error
	DeleteFileByPath(ctx context.Context, projectID, path string) error
	ListFilesByPath(ctx context.Context, projectID, prefix string) ([]model.File, error)
	GetProjectStructure(ctx context.Context, projectID string) ([]string, error)

	// Background agent records for multi-phase generation.
	CreateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error
	UpdateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error
	GetBackgroundAgent(ctx context.Context, id string) (model.BackgroundAgent, error)

	Close() error
}
