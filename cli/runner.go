// Package cli wires configuration into running commands.
//
// Information Hiding:
// - Service assembly hidden
// - Provider chain construction hidden
// - Output formatting hidden
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/polarishq/polaris/agent"
	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/config"
	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/sandbox"
	"github.com/polarishq/polaris/storage"
	"github.com/polarishq/polaris/tools"
)

// Options holds CLI execution options.
type Options struct {
	ProjectID string
	Verbose   bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{ProjectID: "default"}
}

// app bundles the assembled collaborators for one command invocation.
type app struct {
	settings config.Settings
	store    storage.Store
	cache    *cache.Cache
	sandbox  *sandbox.Sandbox
	gateway  *llm.Gateway
	service  *agent.Service
}

// newApp assembles the service from settings.
func newApp() (*app, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}

	gateway, err := buildGateway(settings)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if settings.Storage.Path != "" {
		store, err = storage.OpenSqlite(settings.Storage.Path)
		if err != nil {
			return nil, err
		}
	} else {
		store = storage.NewMemory()
	}

	c := cache.New(settings.Cache.Capacity)
	sb := sandbox.New(time.Duration(settings.Sandbox.TimeoutSecs)*time.Second, settings.Sandbox.MaxOutputBytes)

	service := agent.NewService(gateway, store, c, sb, agent.Config{
		MaxSteps:   settings.Agent.MaxSteps,
		WorkingDir: settings.Agent.WorkingDir,
	})

	return &app{
		settings: settings,
		store:    store,
		cache:    c,
		sandbox:  sb,
		gateway:  gateway,
		service:  service,
	}, nil
}

// describeChain renders the active provider chain, primary first, for
// verbose output.
func describeChain(g *llm.Gateway) string {
	head := g.Primary()
	names := make([]string, 0, len(g.Providers()))
	for _, p := range g.Providers() {
		names = append(names, p.Name())
	}
	return fmt.Sprintf("provider: %s (%s), chain: %s", head.Name(), head.Model(), strings.Join(names, ", "))
}

func (a *app) printVerbose(opts Options) {
	if opts.Verbose {
		fmt.Fprintln(os.Stderr, describeChain(a.gateway))
	}
}

func (a *app) close() {
	_ = a.store.Close()
}

// buildGateway constructs the fallback chain from settings, skipping
// providers whose API key is not configured. An all-keyless chain is the
// configuration error the gateway reports as ErrNoProviders.
func buildGateway(settings config.Settings) (*llm.Gateway, error) {
	var chain []llm.Provider
	for _, name := range settings.LLM.Providers {
		key, err := config.APIKeyFor(name)
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}
		model, err := config.ModelFor(name)
		if err != nil {
			return nil, err
		}
		provider, err := llm.NewProvider(name, key, model, settings.LLM.MaxTokens, float32(settings.LLM.Temperature))
		if err != nil {
			return nil, err
		}
		chain = append(chain, provider)
	}
	return llm.NewGateway(chain...)
}

// Chat submits one user message and prints the assistant's reply.
func Chat(ctx context.Context, prompt string, opts Options) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	a.printVerbose(opts)

	msg, err := a.store.CreateMessage(ctx, opts.ProjectID, "user", prompt)
	if err != nil {
		return err
	}

	replyID, err := a.service.ProcessMessage(ctx, msg.ID)
	if err != nil {
		return err
	}

	mc, err := a.store.GetMessageContext(ctx, replyID)
	if err != nil {
		return err
	}
	if len(mc.Messages) > 0 {
		fmt.Println(mc.Messages[len(mc.Messages)-1].Content)
	}
	return nil
}

// Generate runs multi-phase project generation from a description.
func Generate(ctx context.Context, description string, opts Options) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	a.printVerbose(opts)

	record, err := a.service.GenerateProject(ctx, opts.ProjectID, description)
	if err != nil {
		return fmt.Errorf("generation failed (%s): %w", record.Status, err)
	}

	fmt.Printf("Generation %s (%d%%)\n", record.Status, record.Progress)

	paths, err := a.store.GetProjectStructure(ctx, opts.ProjectID)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println("  " + p)
	}
	return nil
}

// ListTools prints the registered tool set for a project.
func ListTools(opts Options) error {
	registry, err := tools.NewProjectRegistry(storage.NewMemory(), cache.New(cache.DefaultCapacity), sandbox.Default(), opts.ProjectID, "")
	if err != nil {
		return err
	}
	for _, meta := range registry.List() {
		fmt.Printf("%-22s %s\n", meta.Name, meta.Description)
	}
	return nil
}

// CheckCommand validates a command against the sandbox rules without
// running it.
func CheckCommand(command string) error {
	if err := sandbox.Validate(command); err != nil {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
		return err
	}
	fmt.Println("allowed")
	return nil
}
