// File CRUD tools backed by the persistence layer.
//
// Information Hiding:
// - Persistence access and cache coherence hidden per tool
// - Audit-event emission internalized and best-effort
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/model"
	"github.com/polarishq/polaris/storage"
)

// previewLimit caps the content preview attached to audit events.
const previewLimit = 500

// ReadFileTool reads a project file, consulting the content cache first.
type ReadFileTool struct {
	store     storage.Store
	cache     *cache.Cache
	projectID string
}

// NewReadFileTool creates a read_file tool for a project.
func NewReadFileTool(store storage.Store, c *cache.Cache, projectID string) *ReadFileTool {
	return &ReadFileTool{store: store, cache: c, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read the contents of a project file by path.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProperty("Project-relative file path, e.g. src/App.tsx"),
		}, "path"),
	}
}

// Execute reads the file, serving from cache when the cached copy is fresh.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("read_file: bad arguments: %v", err)
	}

	key := cache.FileKey(t.projectID + "/" + input.Path)
	if content, ok := t.cache.Get(key); ok {
		return SuccessResult(content)
	}

	file, err := t.store.ReadFileByPath(ctx, t.projectID, input.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return FailureResultf("file not found: %s", input.Path)
	}
	if err != nil {
		return FailureResultf("failed to read %s: %v", input.Path, err)
	}

	t.cache.SetHashed(key, file.Content, cache.HashContent(file.Content))
	return SuccessResult(file.Content)
}

// WriteFileTool creates or replaces a project file.
type WriteFileTool struct {
	store     storage.Store
	cache     *cache.Cache
	projectID string
}

// NewWriteFileTool creates a write_file tool for a project.
func NewWriteFileTool(store storage.Store, c *cache.Cache, projectID string) *WriteFileTool {
	return &WriteFileTool{store: store, cache: c, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_file",
		Description: "Create or overwrite a project file with the given content.",
		Parameters: objectSchema(map[string]interface{}{
			"path":    stringProperty("Project-relative file path, e.g. src/App.tsx"),
			"content": stringProperty("Full file content to write"),
		}, "path", "content"),
	}
}

// Execute writes the file, invalidates cached copies, and appends an audit
// event. A failed audit append never fails the write.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("write_file: bad arguments: %v", err)
	}

	if err := t.store.WriteFileByPath(ctx, t.projectID, input.Path, input.Content); err != nil {
		return FailureResultf("failed to write %s: %v", input.Path, err)
	}

	// Hash-based invalidation keeps cached copies of an identical rewrite
	// valid; only entries whose stored hash no longer matches are dropped.
	t.cache.InvalidateByHash(t.projectID+"/"+input.Path, cache.HashContent(input.Content))
	t.cache.InvalidateByType(cache.NamespaceStructure)

	_ = t.store.AppendGenerationEvent(ctx, model.GenerationEvent{
		ProjectID: t.projectID,
		Type:      model.EventFileWritten,
		Message:   fmt.Sprintf("wrote %s", input.Path),
		FilePath:  input.Path,
		Preview:   truncatePreview(input.Content),
	})

	return SuccessResultf("Successfully wrote to %s", input.Path)
}

// DeleteFileTool removes a project file.
type DeleteFileTool struct {
	store     storage.Store
	cache     *cache.Cache
	projectID string
}

// NewDeleteFileTool creates a delete_file tool for a project.
func NewDeleteFileTool(store storage.Store, c *cache.Cache, projectID string) *DeleteFileTool {
	return &DeleteFileTool{store: store, cache: c, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *DeleteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "delete_file",
		Description: "Delete a project file by path.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProperty("Project-relative file path to delete"),
		}, "path"),
	}
}

// Execute deletes the file, invalidates cached copies, and appends an audit
// event. A failed audit append never fails the delete.
func (t *DeleteFileTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("delete_file: bad arguments: %v", err)
	}

	err := t.store.DeleteFileByPath(ctx, t.projectID, input.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return FailureResultf("file not found: %s", input.Path)
	}
	if err != nil {
		return FailureResultf("failed to delete %s: %v", input.Path, err)
	}

	t.cache.InvalidateByPath(t.projectID + "/" + input.Path)
	t.cache.InvalidateByType(cache.NamespaceStructure)

	_ = t.store.AppendGenerationEvent(ctx, model.GenerationEvent{
		ProjectID: t.projectID,
		Type:      model.EventFileDeleted,
		Message:   fmt.Sprintf("deleted %s", input.Path),
		FilePath:  input.Path,
	})

	return SuccessResultf("Deleted %s", input.Path)
}

// ListFilesTool lists project files, optionally under a path prefix.
type ListFilesTool struct {
	store     storage.Store
	projectID string
}

// NewListFilesTool creates a list_files tool for a project.
func NewListFilesTool(store storage.Store, projectID string) *ListFilesTool {
	return &ListFilesTool{store: store, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *ListFilesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_files",
		Description: "List project files, optionally filtered by a path prefix.",
		Parameters: objectSchema(map[string]interface{}{
			"prefix": stringProperty("Optional path prefix filter, e.g. src/"),
		}),
	}
}

// Execute lists matching files. An empty project is a success outcome with
// an explicit message so the model does not mistake emptiness for an error.
func (t *ListFilesTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Prefix string `json:"prefix"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("list_files: bad arguments: %v", err)
	}

	files, err := t.store.ListFilesByPath(ctx, t.projectID, input.Prefix)
	if err != nil {
		return FailureResultf("failed to list files: %v", err)
	}
	if len(files) == 0 {
		return SuccessResult("No files yet.")
	}

	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Path)
		b.WriteByte('\n')
	}
	return SuccessResult(strings.TrimRight(b.String(), "\n"))
}

func truncatePreview(content string) string {
	if len(content) <= previewLimit {
		return content
	}
	return content[:previewLimit]
}
