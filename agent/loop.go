// Conversational run loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
	"github.com/polarishq/polaris/storage"
	"github.com/polarishq/polaris/stream"
	"github.com/polarishq/polaris/tools"
)

// apologyMessage replaces the assistant reply when a run fails. The raw
// error still propagates to the job queue; the transcript never shows it.
const apologyMessage = "I'm sorry, something went wrong while working on your request. Please try again."

// ProcessMessage runs the agent loop for a submitted user message and
// returns the ID of the assistant reply it produced.
//
// The run loads the conversation context, enforces at-most-one in-flight
// run per project, then alternates model calls and tool dispatch until the
// model answers without tool calls or the step budget runs out. Budget
// exhaustion completes the run with the accumulated text. The returned
// error is for the job-queue runtime; user-visible failure is the apology
// message written to the reply.
func (s *Service) ProcessMessage(ctx context.Context, messageID string) (string, error) {
	mc, err := s.store.GetMessageContext(ctx, messageID)
	if err != nil {
		return "", fmt.Errorf("failed to load message context: %w", err)
	}

	running, err := s.store.GetProcessingMessages(ctx, mc.ProjectID)
	if err != nil {
		return "", fmt.Errorf("failed to check in-flight runs: %w", err)
	}
	if len(running) > 0 {
		return "", &ConflictError{ProjectID: mc.ProjectID, InFlightMessageID: running[0].ID}
	}

	reply, err := s.store.CreateMessage(ctx, mc.ProjectID, "assistant", "")
	if err != nil {
		return "", fmt.Errorf("failed to create reply message: %w", err)
	}

	// Cancellation is correlated by the submitted message ID.
	runCtx, release := s.cancels.register(ctx, messageID)
	defer release()

	registry, err := tools.NewProjectRegistry(s.store, s.cache, s.sandbox, mc.ProjectID, s.config.WorkingDir)
	if err != nil {
		s.failRun(ctx, reply.ID)
		return reply.ID, err
	}

	sink := stream.NewSink(s.store, reply.ID)
	runErr := s.runLoop(runCtx, mc, reply.ID, registry, sink)

	switch {
	case runErr == nil:
		return reply.ID, nil
	case errors.Is(runErr, context.Canceled):
		// Cancellation is a terminal outcome, not a failure.
		if err := s.store.CancelMessage(context.WithoutCancel(ctx), reply.ID); err != nil {
			return reply.ID, fmt.Errorf("failed to mark run cancelled: %w", err)
		}
		return reply.ID, nil
	default:
		s.failRun(ctx, reply.ID)
		return reply.ID, runErr
	}
}

// failRun performs the fallback persistence writes for a failed run.
// Both writes are best-effort; the run error is what propagates.
func (s *Service) failRun(ctx context.Context, replyID string) {
	ctx = context.WithoutCancel(ctx)
	_ = s.store.StreamMessageContent(ctx, replyID, apologyMessage, true)
	_ = s.store.SetMessageStatus(ctx, replyID, model.RunFailed)
}

func (s *Service) runLoop(ctx context.Context, mc storage.MessageContext, replyID string, registry *tools.Registry, sink *stream.Sink) (err error) {
	// A panic anywhere in the loop is a run-level failure, not a crash.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	conversation := make([]llm.ChatMessage, 0, len(mc.Messages)+1)
	conversation = append(conversation, llm.SystemMessage(s.config.SystemPrompt))
	conversation = append(conversation, mc.Messages...)

	definitions := registry.Definitions()

	var text strings.Builder
	for step := 0; step < s.config.MaxSteps; step++ {
		// Step boundary: honor cancellation cooperatively.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Stream the step so partial text reaches the transcript while the
		// model is still producing it. The sink throttles the writes.
		base := text.String()
		var partial strings.Builder
		resp, _, err := s.gateway.StreamChatWithTools(ctx, conversation, definitions, func(delta string) {
			partial.WriteString(delta)
			cumulative := base
			if cumulative != "" {
				cumulative += "\n"
			}
			cumulative += partial.String()
			sink.Text(ctx, cumulative)
		})
		if err != nil {
			return err
		}

		if resp.Content != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(resp.Content)
			sink.Text(ctx, text.String())
		}

		if len(resp.ToolCalls) == 0 {
			break
		}

		conversation = append(conversation, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Sequential dispatch in issue order keeps the call-to-result
		// mapping deterministic for the model.
		for _, call := range resp.ToolCalls {
			if persistErr := sink.ToolCall(ctx, call); persistErr != nil {
				return persistErr
			}
			result := registry.Dispatch(ctx, call)
			if persistErr := sink.ToolResult(ctx, call.ID, result.Text()); persistErr != nil {
				return persistErr
			}
			conversation = append(conversation, llm.ToolResultMessage(call.ID, result.Text()))
		}
	}

	// Budget exhaustion lands here too: partial progress is a completion.
	if err := sink.Final(ctx, text.String()); err != nil {
		return err
	}
	return s.store.SetMessageStatus(ctx, replyID, model.RunCompleted)
}
