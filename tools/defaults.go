package tools

import (
	"fmt"

	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/sandbox"
	"github.com/polarishq/polaris/storage"
)

// NewProjectRegistry builds the full tool set for one project.
// Returns error if any tool registration fails.
func NewProjectRegistry(store storage.Store, c *cache.Cache, sb *sandbox.Sandbox, projectID, workingDir string) (*Registry, error) {
	registry := NewRegistry()

	all := []Tool{
		NewReadFileTool(store, c, projectID),
		NewWriteFileTool(store, c, projectID),
		NewDeleteFileTool(store, c, projectID),
		NewListFilesTool(store, projectID),
		NewProjectStructureTool(store, c, projectID),
		NewSearchSymbolsTool(store, projectID),
		NewDiagnosticsTool(store, c, projectID),
		NewRankFilesTool(store, projectID, 10),
		NewRunCommandTool(sb, workingDir),
	}

	for _, t := range all {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register project tools: %w", err)
		}
	}

	return registry, nil
}
