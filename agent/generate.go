// Multi-phase project generation.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/polarishq/polaris/internal/jsonx"
	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
	"github.com/polarishq/polaris/tools"
)

const generationSystemPrompt = "You are generating a complete web application project from a description. " +
	"Work phase by phase: each request covers one phase of the project. " +
	"Use write_file to create files and get_project_structure to see what already exists. " +
	"Keep files consistent with what previous phases created."

// verificationVerdict is the JSON verdict requested from the final phase.
type verificationVerdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// GenerateProject decomposes a description into the configured phase
// sequence and runs each as an independent bounded tool-augmented call.
//
// A phase failure aborts the remaining phases but keeps every file the
// completed phases wrote; there is no rollback. Progress on the background
// agent record advances monotonically as phases complete.
func (s *Service) GenerateProject(ctx context.Context, projectID, description string) (model.BackgroundAgent, error) {
	agent := model.BackgroundAgent{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     "Generate project",
		Status:    model.AgentRunning,
		CreatedAt: time.Now().Unix(),
		UpdatedAt: time.Now().Unix(),
	}
	if err := s.store.CreateBackgroundAgent(ctx, agent); err != nil {
		return model.BackgroundAgent{}, fmt.Errorf("failed to create background agent: %w", err)
	}

	registry, err := tools.NewProjectRegistry(s.store, s.cache, s.sandbox, projectID, s.config.WorkingDir)
	if err != nil {
		return s.finishGeneration(ctx, agent, err)
	}
	definitions := registry.Definitions()

	phases := s.config.Phases
	for i, phase := range phases {
		// Phase boundary doubles as the cancellation checkpoint.
		if ctx.Err() != nil {
			agent.Status = model.AgentCancelled
			agent = agent.WithProgress(agent.Progress, phase.Name)
			_ = s.store.UpdateBackgroundAgent(context.WithoutCancel(ctx), agent)
			return agent, ctx.Err()
		}

		agent = agent.WithProgress(phasePercent(i, len(phases)), phase.Name)
		if err := s.store.UpdateBackgroundAgent(ctx, agent); err != nil {
			return s.finishGeneration(ctx, agent, err)
		}

		s.appendPhaseEvent(ctx, projectID, model.EventPhaseStarted, phase.Name, "")

		result, err := s.runPhase(ctx, projectID, description, phase, definitions, registry)
		if err != nil {
			s.appendPhaseEvent(ctx, projectID, model.EventPhaseFailed, phase.Name, err.Error())
			return s.finishGeneration(ctx, agent, fmt.Errorf("phase %q failed: %w", phase.Name, err))
		}

		s.appendPhaseEvent(ctx, projectID, model.EventPhaseDone, phase.Name, "")

		if phase.Name == "verification" {
			s.recordVerdict(ctx, projectID, result.Text)
		}
	}

	agent = agent.WithProgress(100, "done")
	return s.finishGeneration(ctx, agent, nil)
}

// runPhase runs one bounded tool-augmented call for a phase, persisting
// each step's tool traffic as it occurs.
func (s *Service) runPhase(ctx context.Context, projectID, description string, phase Phase, definitions []llm.ToolDefinition, registry *tools.Registry) (llm.Result, error) {
	messages := []llm.ChatMessage{
		llm.SystemMessage(generationSystemPrompt),
		llm.UserMessage(fmt.Sprintf("Project description:\n%s\n\nCurrent phase: %s\n%s",
			description, phase.Name, phase.Prompt)),
	}

	return s.gateway.GenerateWithTools(ctx, messages, definitions, llm.ToolRunOptions{
		MaxSteps: phase.MaxSteps,
		Execute: func(ctx context.Context, call llm.ToolCall) string {
			return registry.Dispatch(ctx, call).Text()
		},
		OnStepFinish: func(step llm.Step) {
			for _, call := range step.ToolCalls {
				_ = s.store.AppendGenerationEvent(ctx, model.GenerationEvent{
					ProjectID: projectID,
					Type:      model.EventToolCall,
					Message:   fmt.Sprintf("%s: %s", phase.Name, call.Name),
					Preview:   previewArguments(call),
				})
			}
		},
	})
}

// recordVerdict parses the verification phase's JSON verdict and appends it
// to the audit log. An unparsable verdict is recorded as such, not failed.
func (s *Service) recordVerdict(ctx context.Context, projectID, response string) {
	verdict, err := jsonx.Parse[verificationVerdict](response)
	message := ""
	switch {
	case err != nil:
		message = "verification produced no parsable verdict"
	case verdict.Passed:
		message = "verification passed"
	default:
		message = "verification failed: " + verdict.Reason
	}
	_ = s.store.AppendGenerationEvent(ctx, model.GenerationEvent{
		ProjectID: projectID,
		Type:      model.EventVerification,
		Message:   message,
	})
}

func (s *Service) appendPhaseEvent(ctx context.Context, projectID, eventType, phase, detail string) {
	message := phase
	if detail != "" {
		message = phase + ": " + detail
	}
	_ = s.store.AppendGenerationEvent(ctx, model.GenerationEvent{
		ProjectID: projectID,
		Type:      eventType,
		Message:   message,
	})
}

// finishGeneration writes the terminal background agent state.
func (s *Service) finishGeneration(ctx context.Context, agent model.BackgroundAgent, runErr error) (model.BackgroundAgent, error) {
	if runErr != nil {
		agent.Status = model.AgentFailed
		agent.Error = runErr.Error()
	} else {
		agent.Status = model.AgentCompleted
	}
	agent.UpdatedAt = time.Now().Unix()
	_ = s.store.UpdateBackgroundAgent(context.WithoutCancel(ctx), agent)
	return agent, runErr
}

// previewArguments renders a capped preview of a tool call's arguments.
func previewArguments(call llm.ToolCall) string {
	args := string(call.Arguments)
	if len(args) > 500 {
		args = args[:500]
	}
	return args
}

// phasePercent maps a phase index to a whole-number progress percentage.
func phasePercent(index, total int) int {
	if total == 0 {
		return 100
	}
	return index * 100 / total
}
