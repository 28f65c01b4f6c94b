// In-memory Store implementation.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind the interface
// - Suitable for testing and ephemeral sessions
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
)

type toolEvent struct {
	messageID  string
	call       *llm.ToolCall
	toolCallID string
	result     string
}

// Memory implements Store using in-process maps.
// Data is lost when the process terminates.
type Memory struct {
	mu         sync.RWMutex
	messages   map[string]model.Message            // message ID -> message
	order      map[string][]string                 // project ID -> message IDs in creation order
	files      map[string]map[string]model.File    // project ID -> path -> file
	toolEvents []toolEvent                         // append-only
	genEvents  []model.GenerationEvent             // append-only
	agents     map[string]model.BackgroundAgent    // agent ID -> record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string]model.Message),
		order:    make(map[string][]string),
		files:    make(map[string]map[string]model.File),
		agents:   make(map[string]model.BackgroundAgent),
	}
}

// GetMessageContext loads the project and ordered prior messages for a message.
func (m *Memory) GetMessageContext(ctx context.Context, messageID string) (MessageContext, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return MessageContext{}, ErrNotFound
	}

	var history []llm.ChatMessage
	for _, id := range m.order[msg.ProjectID] {
		prior := m.messages[id]
		history = append(history, llm.ChatMessage{Role: prior.Role, Content: prior.Content})
		if id == messageID {
			break
		}
	}

	return MessageContext{ProjectID: msg.ProjectID, Messages: history}, nil
}

// CreateMessage appends a new message to the project conversation.
func (m *Memory) CreateMessage(ctx context.Context, projectID, role, content string) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := model.Message{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Role:      role,
		Content:   content,
		Status:    model.RunRunning,
		CreatedAt: time.Now().Unix(),
	}
	m.messages[msg.ID] = msg
	m.order[projectID] = append(m.order[projectID], msg.ID)
	return msg, nil
}

// UpdateMessageContent replaces a message's content.
func (m *Memory) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Content = content
	m.messages[messageID] = msg
	return nil
}

// StreamMessageContent writes a cumulative partial; isComplete marks the
// terminal write.
func (m *Memory) StreamMessageContent(ctx context.Context, messageID, content string, isComplete bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Content = content
	msg.IsComplete = isComplete
	m.messages[messageID] = msg
	return nil
}

// SetMessageStatus updates the run status of a message.
func (m *Memory) SetMessageStatus(ctx context.Context, messageID string, status model.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	msg.Status = status
	m.messages[messageID] = msg
	return nil
}

// CancelMessage marks a message cancelled. Cancelling an already-terminal
// message is a no-op, not an error.
func (m *Memory) CancelMessage(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return ErrNotFound
	}
	if msg.Status.IsTerminal() {
		return nil
	}
	msg.Status = model.RunCancelled
	msg.IsComplete = true
	m.messages[messageID] = msg
	return nil
}

// GetProcessingMessages returns running messages for a project.
func (m *Memory) GetProcessingMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var running []model.Message
	for _, id := range m.order[projectID] {
		if msg := m.messages[id]; msg.Status == model.RunRunning && msg.Role == "assistant" {
			running = append(running, msg)
		}
	}
	return running, nil
}

// AppendToolCall appends a tool-call event.
func (m *Memory) AppendToolCall(ctx context.Context, messageID string, call llm.ToolCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolEvents = append(m.toolEvents, toolEvent{messageID: messageID, call: &call})
	return nil
}

// AppendToolResult appends a tool-result event.
func (m *Memory) AppendToolResult(ctx context.Context, messageID, toolCallID, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolEvents = append(m.toolEvents, toolEvent{messageID: messageID, toolCallID: toolCallID, result: result})
	return nil
}

// ToolEventCount reports the number of appended tool events (test helper).
func (m *Memory) ToolEventCount(messageID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.toolEvents {
		if e.messageID == messageID {
			n++
		}
	}
	return n
}

// AppendGenerationEvent appends an audit event.
func (m *Memory) AppendGenerationEvent(ctx context.Context, event model.GenerationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	m.genEvents = append(m.genEvents, event)
	return nil
}

// GenerationEvents returns a copy of the appended events for a project.
func (m *Memory) GenerationEvents(projectID string) []model.GenerationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []model.GenerationEvent
	for _, e := range m.genEvents {
		if e.ProjectID == projectID {
			events = append(events, e)
		}
	}
	return events
}

// ReadFileByPath reads a project file.
func (m *Memory) ReadFileByPath(ctx context.Context, projectID, path string) (model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[projectID][path]
	if !ok {
		return model.File{}, ErrNotFound
	}
	return file, nil
}

// WriteFileByPath creates or replaces a project file.
func (m *Memory) WriteFileByPath(ctx context.Context, projectID, path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.files[projectID] == nil {
		m.files[projectID] = make(map[string]model.File)
	}
	m.files[projectID][path] = model.File{
		ProjectID: projectID,
		Path:      path,
		Content:   content,
		UpdatedAt: time.Now().Unix(),
	}
	return nil
}

// DeleteFileByPath removes a project file.
func (m *Memory) DeleteFileByPath(ctx context.Context, projectID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[projectID][path]; !ok {
		return ErrNotFound
	}
	delete(m.files[projectID], path)
	return nil
}

// ListFilesByPath lists project files under a path prefix, sorted by path.
// An empty prefix lists everything.
func (m *Memory) ListFilesByPath(ctx context.Context, projectID, prefix string) ([]model.File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []model.File
	for path, file := range m.files[projectID] {
		if prefix == "" || strings.HasPrefix(path, prefix) {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// GetProjectStructure returns all file paths for a project, sorted.
func (m *Memory) GetProjectStructure(ctx context.Context, projectID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for path := range m.files[projectID] {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// CreateBackgroundAgent stores a new background agent record.
func (m *Memory) CreateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	return nil
}

// UpdateBackgroundAgent replaces a background agent record.
func (m *Memory) UpdateBackgroundAgent(ctx context.Context, agent model.BackgroundAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.agents[agent.ID]; !ok {
		return ErrNotFound
	}
	m.agents[agent.ID] = agent
	return nil
}

// GetBackgroundAgent fetches a background agent record.
func (m *Memory) GetBackgroundAgent(ctx context.Context, id string) (model.BackgroundAgent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[id]
	if !ok {
		return model.BackgroundAgent{}, ErrNotFound
	}
	return agent, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

// Verify Memory implements Store
var _ Store = (*Memory)(nil)
