// SQLite-backed Store implementation.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
)

// SqliteStore implements Store using a SQLite database file.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			status TEXT NOT NULL,
			is_complete INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			seq INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_messages_project
		ON messages(project_id, created_at, seq);

		CREATE TABLE IF NOT EXISTS message_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			tool_call_id TEXT,
			tool_name TEXT,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_message_events_message
		ON message_events(message_id, id);

		CREATE TABLE IF NOT EXISTS files (
			project_id TEXT NOT NULL,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (project_id, path)
		);

		CREATE INDEX IF NOT EXISTS idx_files_project
		ON files(project_id, path);

		CREATE TABLE IF NOT EXISTS generation_events (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			message TEXT NOT NULL,
			file_path TEXT,
			preview TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_generation_events_project
		ON generation_events(project_id, created_at);

		CREATE TABLE IF NOT EXISTS background_agents (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			current_step TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_background_agents_project
		ON background_agents(project_id, created_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetMessageContext loads the project and ordered prior messages up to and
// including the given message.
func (s *SqliteStore) GetMessageContext(ctx context.Context, messageID string) (MessageContext, error) {
	var projectID string
	var seq int64
	err := s.db.QueryRowContext(ctx,
		"SELECT project_id, seq FROM messages WHERE id = ?",
		messageID).Scan(&projectID, &seq)
	if errors.Is(err, sql.ErrNoRows) {
		return MessageContext{}, ErrNotFound
	}
	if err != nil {
		return MessageContext{}, fmt.Errorf("failed to query message: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content FROM messages WHERE project_id = ? AND seq <= ? ORDER BY seq ASC",
		projectID, seq)
	if err != nil {
		return MessageContext{}, fmt.Errorf("failed to query conversation: %w", err)
	}
	defer rows.Close()

	var history []llm.ChatMessage
	for rows.Next() {
		var msg llm.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return MessageContext{}, fmt.Errorf("failed to scan message: %w", err)
		}
		history = append(history, msg)
	}
	if err := rows.Err(); err != nil {
		return MessageContext{}, fmt.Errorf("error iterating messages: %w", err)
	}

	return MessageContext{ProjectID: projectID, Messages: history}, nil
}

// CreateMessage appends a new message to the project conversation.
func (s *SqliteStore) CreateMessage(ctx context.Context, projectID, role, content string) (model.Message, error) {
	msg := model.Message{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Status:    model.RunRunning,
		CreatedAt: time.Now().Unix(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, role, content, status, is_complete, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, 0, ?,
		   (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE project_id = ?))`,
		msg.ID, msg.ProjectID, msg.Role, msg.Content, msg.Status.String(), msg.CreatedAt, msg.ProjectID)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

// UpdateMessageContent replaces a message's content.
func (s *SqliteStore) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET content = ? WHERE id = ?",
		content, messageID)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return requireAffected(res)
}

// StreamMessageContent writes a cumulative partial; isComplete marks the
// terminal write.
func (s *SqliteStore) StreamMessageContent(ctx context.Context, messageID, content string, isComplete bool) error {
	complete := 0
	if isComplete {
		complete = 1
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET content = ?, is_complete = ? WHERE id = ?",
		content, complete, messageID)
	if err != nil {
		return fmt.Errorf("failed to stream message content: %w", err)
	}
	return requireAffected(res)
}

// SetMessageStatus updates the run status of a message.
func (s *SqliteStore) SetMessageStatus(ctx context.Context, messageID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET status = ? WHERE id = ?",
		status.String(), messageID)
	if err != nil {
		return fmt.Errorf("failed to set message status: %w", err)
	}
	return requireAffected(res)
}

// CancelMessage marks a running message cancelled. Cancelling an
// already-terminal message is a no-op.
func (s *SqliteStore) CancelMessage(ctx context.Context, messageID string) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		"SELECT status FROM messages WHERE id = ?", messageID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query message status: %w", err)
	}

	parsed, err := model.ParseRunStatus(status)
	if err != nil {
		return err
	}
	if parsed.IsTerminal() {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE messages SET status = ?, is_complete = 1 WHERE id = ?",
		model.RunCancelled.String(), messageID)
	if err != nil {
		return fmt.Errorf("failed to cancel message: %w", err)
	}
	return nil
}

// GetProcessingMessages returns running assistant messages for a project.
func (s *SqliteStore) GetProcessingMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, role, content, status, is_complete, created_at
		 FROM messages
		 WHERE project_id = ? AND role = 'assistant' AND status = ?
		 ORDER BY seq ASC`,
		projectID, model.RunRunning.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query processing messages: %w", err)
	}
	defer rows.Close()

	var running []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		running = append(running, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return running, nil
}

func scanMessage(rows *sql.Rows) (model.Message, error) {
	var msg model.Message
	var status string
	var complete int
	if err := rows.Scan(&msg.ID, &msg.ProjectID, &msg.Role, &msg.Content, &status, &complete, &msg.CreatedAt); err != nil {
		return model.Message{}, fmt.Errorf("failed to scan message: %w", err)
	}
	parsed, err := model.ParseRunStatus(status)
	if err != nil {
		return model.Message{}, err
	}
	msg.Status = parsed
	msg.IsComplete = complete != 0
	return msg, nil
}

// AppendToolCall appends a tool-call event to the message event log.
func (s *SqliteStore) AppendToolCall(ctx context.Context, messageID string, call llm.ToolCall) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_events (message_id, event_type, tool_call_id, tool_name, payload, created_at)
		 VALUES (?, 'tool_call', ?, ?, ?, ?)`,
		messageID, call.ID, call.Name, string(call.Arguments), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append tool call: %w", err)
	}
	return nil
}

// AppendToolResult appends a tool-result event to the message event log.
func (s *SqliteStore) AppendToolResult(ctx context.Context, messageID, toolCallID, result string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_events (message_id, event_type, tool_call_id, payload, created_at)
		 VALUES (?, 'tool_result', ?, ?, ?)`,
		messageID, toolCallID, result, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to append tool result: %w", err)
	}
	return nil
}

// AppendGenerationEvent appends an audit event for a project.
func (s *SqliteStore) AppendGenerationEvent(ctx context.Context, event model.GenerationEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_events (id, project_id, event_type, message, file_path, preview, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ProjectID, event.Type, event.Message, event.FilePath, event.Preview, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append generation event: %w", err)
	}
	return nil
}

// ReadFileByPath reads a project file.
func (s *SqliteStore) ReadFileByPath(ctx context.Context, projectID, path string) (model.File, error) {
	var file model.File
	err := s.db.QueryRowContext(ctx,
		"SELECT project_id, path, content, updated_at FROM files WHERE project_id = ? AND path = ?",
		projectID, path).Scan(&file.ProjectID, &file.Path, &file.Content, &file.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.File{}, ErrNotFound
	}
	if err != nil {
		return model.File{}, fmt.Errorf("failed to read file: %w", err)
	}
	return file, nil
}

// WriteFileByPath creates or replaces a project file.
func (s *SqliteStore) WriteFileByPath(ctx context.Context, projectID, path, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (project_id, path, content, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project_id, path) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at`,
		projectID, path, content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// DeleteFileByPath removes a project file.
func (s *SqliteStore) DeleteFileByPath(ctx context.Context, projectID, path string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM files WHERE project_id = ? AND path = ?",
		projectID, path)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return requireAffected(res)
}

// ListFilesByPath lists project files under a path prefix, sorted by path.
// An empty prefix lists everything.
func (s *SqliteStore) ListFilesByPath(ctx context.Context, projectID, prefix string) ([]model.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT project_id, path, content, updated_at FROM files
		 WHERE project_id = ? AND path LIKE ? ESCAPE '\'
		 ORDER BY path ASC`,
		projectID, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		var file model.File
		if err := rows.Scan(&file.ProjectID, &file.Path, &file.Content, &file.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}
	return files, nil
}

// GetProjectStructure returns all file paths for a project, sorted.
func (s *SqliteStore) GetProjectStructure(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path FROM files WHERE project_id = ? ORDER BY path ASC",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file paths: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paths: %w", err)
	}
	return paths, nil
}

// CreateBackgroundAgent stores a new background agent record.
func (s *SqliteStore) CreateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO background_agents (id, project_id, title, status, progress, current_step, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agent.ID, agent.ProjectID, agent.Title, agent.Status.String(),
		agent.Progress, agent.CurrentStep, agent.Error, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert background agent: %w", err)
	}
	return nil
}

// UpdateBackgroundAgent replaces a background agent record.
func (s *SqliteStore) UpdateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE background_agents
		 SET status = ?, progress = ?, current_step = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		agent.Status.String(), agent.Progress, agent.CurrentStep, agent.Error, agent.UpdatedAt, agent.ID)
	if err != nil {
		return fmt.Errorf("failed to update background agent: %w", err)
	}
	return requireAffected(res)
}

// GetBackgroundAgent fetches a background agent record.
func (s *SqliteStore) GetBackgroundAgent(ctx context.Context, id string) (model.BackgroundAgent, error) {
	var agent model.BackgroundAgent
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, title, status, progress, current_step, error, created_at, updated_at
		 FROM background_agents WHERE id = ?`,
		id).Scan(&agent.ID, &agent.ProjectID, &agent.Title, &status,
		&agent.Progress, &agent.CurrentStep, &agent.Error, &agent.CreatedAt, &agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BackgroundAgent{}, ErrNotFound
	}
	if err != nil {
		return model.BackgroundAgent{}, fmt.Errorf("failed to read background agent: %w", err)
	}
	agent.Status = model.AgentStatus(status)
	return agent, nil
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards in a literal prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
