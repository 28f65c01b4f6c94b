package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/polarishq/polaris/cache"
)

func TestProjectStructureTree(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	for _, p := range []string{"package.json", "src/App.tsx", "src/components/Button.tsx"} {
		if err := store.WriteFileByPath(ctx, "proj", p, "x"); err != nil {
			t.Fatalf("WriteFileByPath failed: %v", err)
		}
	}

	tool := NewProjectStructureTool(store, c, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{}`))
	if !result.Success() {
		t.Fatalf("structure failed: %s", result.Text())
	}

	want := "package.json\nsrc/\n  App.tsx\n  components/\n    Button.tsx"
	if result.Output != want {
		t.Errorf("unexpected tree:\n%s\nwant:\n%s", result.Output, want)
	}

	// Rendered tree is cached under the structure namespace.
	if _, ok := c.Get(cache.StructureKey("proj")); !ok {
		t.Error("expected structure cached after render")
	}
}

func TestProjectStructureEmpty(t *testing.T) {
	store, c := newFixture(t)

	tool := NewProjectStructureTool(store, c, "proj")
	result := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if !result.Success() || result.Output != "No files yet." {
		t.Errorf("unexpected result for empty project: %+v", result)
	}
}

func TestSearchSymbols(t *testing.T) {
	store, _ := newFixture(t)
	ctx := context.Background()

	source := "export function useCart() {}\nconst cartTotal = 0\nclass Checkout {}\n"
	if err := store.WriteFileByPath(ctx, "proj", "src/cart.ts", source); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}

	tool := NewSearchSymbolsTool(store, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{"query":"cart"}`))
	if !result.Success() {
		t.Fatalf("search failed: %s", result.Text())
	}
	if !strings.Contains(result.Output, "function useCart") {
		t.Errorf("expected useCart match in %q", result.Output)
	}
	if !strings.Contains(result.Output, "const cartTotal") {
		t.Errorf("expected cartTotal match in %q", result.Output)
	}
	if strings.Contains(result.Output, "Checkout") {
		t.Errorf("did not expect Checkout in %q", result.Output)
	}
}

func TestDiagnosticsFindsAndCaches(t *testing.T) {
	store, c := newFixture(t)
	ctx := context.Background()

	source := "function f() {\n  debugger\n  console.log('x')\n}\n"
	if err := store.WriteFileByPath(ctx, "proj", "src/a.ts", source); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}

	tool := NewDiagnosticsTool(store, c, "proj")
	result := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts"}`))
	if !result.Success() {
		t.Fatalf("diagnostics failed: %s", result.Text())
	}
	if !strings.Contains(result.Output, "debugger") || !strings.Contains(result.Output, "console.log") {
		t.Errorf("expected findings in %q", result.Output)
	}

	// Editing the file invalidates the cached scan via the hash check.
	if err := store.WriteFileByPath(ctx, "proj", "src/a.ts", "function f() {}\n"); err != nil {
		t.Fatalf("WriteFileByPath failed: %v", err)
	}
	clean := tool.Execute(ctx, json.RawMessage(`{"path":"src/a.ts"}`))
	if !clean.Success() {
		t.Fatalf("diagnostics failed: %s", clean.Text())
	}
	if !strings.Contains(clean.Output, "No issues found") {
		t.Errorf("expected clean report after edit, got %q", clean.Output)
	}
}

func TestRankRelevantFiles(t *testing.T) {
	store, _ := newFixture(t)
	ctx := context.Background()

	files := map[string]string{
		"src/cart/Cart.tsx":    "export function Cart() { return null }",
		"src/pages/Home.tsx":   "export function Home() { return null }",
		"src/hooks/useCart.ts": "export function useCart() { /* cart state */ }",
	}
	for p, content := range files {
		if err := store.WriteFileByPath(ctx, "proj", p, content); err != nil {
			t.Fatalf("WriteFileByPath failed: %v", err)
		}
	}

	tool := NewRankFilesTool(store, "proj", 2)
	result := tool.Execute(ctx, json.RawMessage(`{"query":"shopping cart"}`))
	if !result.Success() {
		t.Fatalf("rank failed: %s", result.Text())
	}

	lines := strings.Split(result.Output, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected top 2 results, got %d: %q", len(lines), result.Output)
	}
	for _, line := range lines {
		if !strings.Contains(strings.ToLower(line), "cart") {
			t.Errorf("unexpected ranked file %q", line)
		}
	}
}
