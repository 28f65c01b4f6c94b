// Project structure, symbol search, diagnostics, and relevance tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/storage"
)

// ProjectStructureTool renders the project file tree.
type ProjectStructureTool struct {
	store     storage.Store
	cache     *cache.Cache
	projectID string
}

// NewProjectStructureTool creates a get_project_structure tool for a project.
func NewProjectStructureTool(store storage.Store, c *cache.Cache, projectID string) *ProjectStructureTool {
	return &ProjectStructureTool{store: store, cache: c, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *ProjectStructureTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_project_structure",
		Description: "Show the project's file tree.",
		Parameters:  objectSchema(map[string]interface{}{}),
	}
}

// Execute renders the tree, serving a cached rendering when fresh.
func (t *ProjectStructureTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	key := cache.StructureKey(t.projectID)
	if rendered, ok := t.cache.Get(key); ok {
		return SuccessResult(rendered)
	}

	paths, err := t.store.GetProjectStructure(ctx, t.projectID)
	if err != nil {
		return FailureResultf("failed to load project structure: %v", err)
	}
	if len(paths) == 0 {
		return SuccessResult("No files yet.")
	}

	rendered := renderTree(paths)
	t.cache.Set(key, rendered)
	return SuccessResult(rendered)
}

// renderTree renders sorted paths as an indented directory tree.
func renderTree(paths []string) string {
	var b strings.Builder
	var lastDirs []string
	for _, p := range paths {
		parts := strings.Split(p, "/")
		dirs := parts[:len(parts)-1]

		common := 0
		for common < len(dirs) && common < len(lastDirs) && dirs[common] == lastDirs[common] {
			common++
		}
		for i := common; i < len(dirs); i++ {
			b.WriteString(strings.Repeat("  ", i))
			b.WriteString(dirs[i])
			b.WriteString("/\n")
		}
		b.WriteString(strings.Repeat("  ", len(dirs)))
		b.WriteString(parts[len(parts)-1])
		b.WriteByte('\n')
		lastDirs = dirs
	}
	return strings.TrimRight(b.String(), "\n")
}

// symbolPattern matches common declaration forms in JS/TS sources.
var symbolPattern = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?(function|class|interface|type|enum|const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// SearchSymbolsTool finds declarations matching a query across stored files.
type SearchSymbolsTool struct {
	store     storage.Store
	projectID string
}

// NewSearchSymbolsTool creates a search_symbols tool for a project.
func NewSearchSymbolsTool(store storage.Store, projectID string) *SearchSymbolsTool {
	return &SearchSymbolsTool{store: store, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *SearchSymbolsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_symbols",
		Description: "Find declarations (functions, classes, types, constants) whose name contains the query.",
		Parameters: objectSchema(map[string]interface{}{
			"query": stringProperty("Substring to match against declaration names, case-insensitive"),
		}, "query"),
	}
}

// Execute scans all project files for matching declarations.
func (t *SearchSymbolsTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("search_symbols: bad arguments: %v", err)
	}

	files, err := t.store.ListFilesByPath(ctx, t.projectID, "")
	if err != nil {
		return FailureResultf("failed to list files: %v", err)
	}

	query := strings.ToLower(input.Query)
	var matches []string
	for _, f := range files {
		for _, m := range symbolPattern.FindAllStringSubmatch(f.Content, -1) {
			kind, name := m[1], m[2]
			if strings.Contains(strings.ToLower(name), query) {
				matches = append(matches, fmt.Sprintf("%s: %s %s", f.Path, kind, name))
			}
		}
	}

	if len(matches) == 0 {
		return SuccessResultf("No symbols matching %q.", input.Query)
	}
	return SuccessResult(strings.Join(matches, "\n"))
}

// diagnosticRule is a lightweight source check.
type diagnosticRule struct {
	message string
	pattern *regexp.Regexp
}

var diagnosticRules = []diagnosticRule{
	{"merge conflict marker", regexp.MustCompile(`(?m)^<<<<<<< `)},
	{"leftover debugger statement", regexp.MustCompile(`(?m)^\s*debugger\b`)},
	{"console.log left in source", regexp.MustCompile(`console\.log\(`)},
	{"TODO or FIXME marker", regexp.MustCompile(`(?i)\b(TODO|FIXME)\b`)},
	{"empty catch block", regexp.MustCompile(`catch\s*(\([^)]*\))?\s*\{\s*\}`)},
}

// DiagnosticsTool runs lightweight heuristic checks over a file.
type DiagnosticsTool struct {
	store     storage.Store
	cache     *cache.Cache
	projectID string
}

// NewDiagnosticsTool creates a get_diagnostics tool for a project.
func NewDiagnosticsTool(store storage.Store, c *cache.Cache, projectID string) *DiagnosticsTool {
	return &DiagnosticsTool{store: store, cache: c, projectID: projectID}
}

// Metadata returns the tool metadata.
func (t *DiagnosticsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "get_diagnostics",
		Description: "Run lightweight source checks over a project file and report findings.",
		Parameters: objectSchema(map[string]interface{}{
			"path": stringProperty("Project-relative file path to check"),
		}, "path"),
	}
}

// Execute scans the file. Results are cached keyed by file and validated
// against the current content hash so an edit invalidates the cached scan.
func (t *DiagnosticsTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("get_diagnostics: bad arguments: %v", err)
	}

	file, err := t.store.ReadFileByPath(ctx, t.projectID, input.Path)
	if errors.Is(err, storage.ErrNotFound) {
		return FailureResultf("file not found: %s", input.Path)
	}
	if err != nil {
		return FailureResultf("failed to read %s: %v", input.Path, err)
	}

	key := cache.DiagnosticsKey(t.projectID + "/" + input.Path)
	hash := cache.HashContent(file.Content)
	if t.cache.IsValid(key, hash) {
		if cached, ok := t.cache.Get(key); ok {
			return SuccessResult(cached)
		}
	}

	report := scanDiagnostics(input.Path, file.Content)
	t.cache.SetHashed(key, report, hash)
	return SuccessResult(report)
}

func scanDiagnostics(path, content string) string {
	var findings []string
	for _, rule := range diagnosticRules {
		if loc := rule.pattern.FindStringIndex(content); loc != nil {
			line := 1 + strings.Count(content[:loc[0]], "\n")
			findings = append(findings, fmt.Sprintf("%s:%d: %s", path, line, rule.message))
		}
	}
	if len(findings) == 0 {
		return fmt.Sprintf("No issues found in %s.", path)
	}
	return strings.Join(findings, "\n")
}

// wordPattern tokenizes queries and paths for relevance ranking.
var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// RankFilesTool ranks project files by keyword overlap with a query.
type RankFilesTool struct {
	store     storage.Store
	projectID string
	limit     int
}

// NewRankFilesTool creates a rank_relevant_files tool for a project.
func NewRankFilesTool(store storage.Store, projectID string, limit int) *RankFilesTool {
	if limit <= 0 {
		limit = 10
	}
	return &RankFilesTool{store: store, projectID: projectID, limit: limit}
}

// Metadata returns the tool metadata.
func (t *RankFilesTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "rank_relevant_files",
		Description: "Rank project files by relevance to a query, most relevant first.",
		Parameters: objectSchema(map[string]interface{}{
			"query": stringProperty("Description of what you are looking for"),
		}, "query"),
	}
}

// Execute scores each file by keyword overlap between the query and the
// file's path and contents.
func (t *RankFilesTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("rank_relevant_files: bad arguments: %v", err)
	}

	files, err := t.store.ListFilesByPath(ctx, t.projectID, "")
	if err != nil {
		return FailureResultf("failed to list files: %v", err)
	}
	if len(files) == 0 {
		return SuccessResult("No files yet.")
	}

	keywords := tokenize(input.Query)
	type scored struct {
		path  string
		score int
	}
	ranked := make([]scored, 0, len(files))
	for _, f := range files {
		score := 0
		haystack := strings.ToLower(f.Content)
		base := strings.ToLower(path.Base(f.Path))
		for kw := range keywords {
			// Path hits weigh more than content hits.
			if strings.Contains(base, kw) {
				score += 3
			} else if strings.Contains(strings.ToLower(f.Path), kw) {
				score += 2
			}
			if strings.Contains(haystack, kw) {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{path: f.Path, score: score})
		}
	}

	if len(ranked) == 0 {
		return SuccessResultf("No files relevant to %q.", input.Query)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > t.limit {
		ranked = ranked[:t.limit]
	}

	lines := make([]string, len(ranked))
	for i, r := range ranked {
		lines[i] = r.path
	}
	return SuccessResult(strings.Join(lines, "\n"))
}

func tokenize(s string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		if len(w) > 2 {
			words[w] = struct{}{}
		}
	}
	return words
}
