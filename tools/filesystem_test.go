package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/model"
	"github.com/polarishq/polaris/storage"
)

func newFixture(t *testing.T) (*storage.Memory, *cache.Cache) {
	t.Helper()
	return storage.NewMemory(), cache.New(cache.DefaultCapacity)
}

func TestReadFileServesFromCache(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	if err := store.WriteFileByPath(ctx, "proj", "src/a.ts", "const x = 1"); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}

	tool := NewReadFileTool(store, c, "proj")
	args := json.RawMessage(`{"path":"src/a.ts"}`)

	first := tool.Execute(ctx, args)
	if !first.Success() || first.Output != "const x = 1" {
		t.Fatalf("unexpected first read: %+v", first)
	}

	// Mutate behind the cache: the cached copy is served until invalidated.
	if err := store.WriteFileByPath(ctx, "proj", "src/a.ts", "const x = 2"); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}
	second := tool.Execute(ctx, args)
	if second.Output != "const x = 1" {
		t.Errorf("expected cached content, got %q", second.Output)
	}

	c.InvalidateByPath("proj/src/a.ts")
	third := tool.Execute(ctx, args)
	if third.Output != "const x = 2" {
		t.Errorf("expected fresh content after invalidation, got %q", third.Output)
	}
}

func TestReadFileNotFound(t *testing.T) {
	store, c := newFixture(t)

	tool := NewReadFileTool(store, c, "proj")
	result := tool.Execute(context.Background(), json.RawMessage(`{"path":"missing.ts"}`))
	if result.Success() {
		t.Fatal("expected failure for missing file")
	}
	if !strings.Contains(result.Text(), "file not found") {
		t.Errorf("unexpected failure text: %s", result.Text())
	}
}

func TestWriteFileInvalidatesAndAudits(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	// Seed the cache with stale content for the same path.
	c.Set(cache.FileKey("proj/src/a.ts"), "stale")

	tool := NewWriteFileTool(store, c, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts","content":"X"}`))
	if !result.Success() {
		t.Fatalf("write failed: %s", result.Text())
	}
	if result.Output != "Successfully wrote to src/a.ts" {
		t.Errorf("unexpected output: %q", result.Output)
	}

	if _, ok := c.Get(cache.FileKey("proj/src/a.ts")); ok {
		t.Error("expected cached entry invalidated after write")
	}

	file, err := store.ReadFileByPath(ctx, "proj", "src/a.ts")
	if err != nil {
		t.Fatalf("ReadFileByPath failed: %v", err)
	}
	if file.Content != "X" {
		t.Errorf("expected persisted content X, got %q", file.Content)
	}

	events := store.GenerationEvents("proj")
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].Type != model.EventFileWritten || events[0].FilePath != "src/a.ts" {
		t.Errorf("unexpected audit event: %+v", events[0])
	}
}

func TestWriteFileSameContentKeepsCache(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	c.SetHashed(cache.FileKey("proj/src/a.ts"), "X", cache.HashContent("X"))

	tool := NewWriteFileTool(store, c, "proj")
	if result := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts","content":"X"}`)); !result.Success() {
		t.Fatalf("write failed: %s", result.Text())
	}
	if _, ok := c.Get(cache.FileKey("proj/src/a.ts")); !ok {
		t.Error("rewriting identical content should keep the cached copy")
	}

	if result := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts","content":"Y"}`)); !result.Success() {
		t.Fatalf("write failed: %s", result.Text())
	}
	if _, ok := c.Get(cache.FileKey("proj/src/a.ts")); ok {
		t.Error("changed content should drop the cached copy")
	}
}

func TestWriteFilePreviewCapped(t *testing.T) {
	store, c := newFixture(t)

	long := strings.Repeat("a", previewLimit*2)
	tool := NewWriteFileTool(store, c, "proj")
	args, _ := json.Marshal(map[string]string{"path": "big.txt", "content": long})

	if result := tool.Execute(context.Background(), args); !result.Success() {
		t.Fatalf("write failed: %s", result.Text())
	}

	events := store.GenerationEvents("proj")
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if len(events[0].Preview) != previewLimit {
		t.Errorf("expected preview capped at %d, got %d", previewLimit, len(events[0].Preview))
	}
}

func TestDeleteFile(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	if err := store.WriteFileByPath(ctx, "proj", "src/a.ts", "X"); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}

	tool := NewDeleteFileTool(store, c, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts"}`))
	if !result.Success() {
		t.Fatalf("delete failed: %s", result.Text())
	}

	if _, err := store.ReadFileByPath(ctx, "proj", "src/a.ts"); err == nil {
		t.Error("expected file gone after delete")
	}

	// Deleting again is a tool-level failure, not a process error.
	again := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts"}`))
	if again.Success() {
		t.Error("expected failure deleting missing file")
	}
}

func TestListFilesEmptyProject(t *testing.T) {
	store, _ := newFixture(t)

	tool := NewListFilesTool(store, "proj")
	result := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if !result.Success() {
		t.Fatalf("list failed: %s", result.Text())
	}
	if result.Output != "No files yet." {
		t.Errorf("expected explicit empty message, got %q", result.Output)
	}
}

func TestListFilesWithPrefix(t *testing.T) {
	store, _ := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"src/a.ts", "src/b.ts", "package.json"} {
		if err := store.WriteFileByPath(ctx, "proj", p, "x"); err != nil {
			t.Fatalf("WriteFileByPath failed: %v", err)
		}
	}

	tool := NewListFilesTool(store, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{"prefix":"src/"}`))
	if !result.Success() {
		t.Fatalf("list failed: %s", result.Text())
	}
	if result.Output != "src/a.ts\nsrc/b.ts" {
		t.Errorf("unexpected listing: %q", result.Output)
	}
}
