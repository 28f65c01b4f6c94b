// Provider Gateway - primary/fallback selection over interchangeable backends.
//
// The gateway owns the failover policy: providers are tried in configured
// order, and any failure (network, non-2xx, malformed response) falls
// through to the next provider. Callers see a uniform request/response
// contract in blocking, streaming, and tool-augmented multi-step modes,
// with the serving provider and model attributed on every result.

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoProviders indicates the gateway was constructed with an empty
// provider chain. This is a configuration error: it is never retried and
// the gateway never degrades to a mock.
var ErrNoProviders = errors.New("llm: no providers configured")

// Gateway routes requests across an ordered provider chain.
type Gateway struct {
	providers []Provider
}

// NewGateway creates a gateway over the given providers, tried in order.
func NewGateway(providers ...Provider) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Gateway{providers: providers}, nil
}

// Providers returns the configured chain in fallback order.
func (g *Gateway) Providers() []Provider {
	return g.providers
}

// Primary returns the first provider in the chain.
func (g *Gateway) Primary() Provider {
	return g.providers[0]
}

// Result is a completed generation with provider attribution.
type Result struct {
	Text     string
	Provider string
	Model    string
	Usage    TokenUsage
	// TimeToFirstToken is set for streaming generations.
	TimeToFirstToken time.Duration
	// Steps is the number of model calls made (tool-augmented mode).
	Steps int
}

// attempt runs fn against each provider in order until one succeeds.
// All per-provider errors are joined when every provider fails.
func (g *Gateway) attempt(ctx context.Context, fn func(Provider) (Response, error)) (Response, Provider, error) {
	var errs []error
	for _, p := range g.providers {
		if ctx.Err() != nil {
			return Response{}, nil, ctx.Err()
		}
		resp, err := fn(p)
		if err == nil {
			return resp, p, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return Response{}, nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// Generate sends a blocking completion request through the provider chain.
func (g *Gateway) Generate(ctx context.Context, messages []ChatMessage) (Result, error) {
	resp, p, err := g.attempt(ctx, func(p Provider) (Response, error) {
		return p.Chat(ctx, messages)
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Text:     resp.Content,
		Provider: p.Name(),
		Model:    p.Model(),
		Steps:    1,
	}
	result.Usage.Add(resp.Usage)
	return result, nil
}

// ChatWithTools sends a single tool-augmented completion through the chain.
// The serving provider is returned so callers can attribute the response.
func (g *Gateway) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, Provider, error) {
	return g.attempt(ctx, func(p Provider) (Response, error) {
		return p.ChatWithTools(ctx, messages, tools)
	})
}

// StreamChatWithTools streams one tool-augmented completion, delivering
// each text delta through onDelta as it arrives. Failover applies only
// before the first delta reaches the caller; once text has been delivered
// the attempt is not replayed against another provider.
func (g *Gateway) StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, onDelta func(delta string)) (Response, Provider, error) {
	var errs []error
	for _, p := range g.providers {
		if ctx.Err() != nil {
			return Response{}, nil, ctx.Err()
		}

		chunks := make(chan string, 100)
		outcome := make(chan streamOutcome, 1)
		go func(p Provider) {
			defer close(chunks)
			resp, err := p.StreamChatWithTools(ctx, messages, tools, chunks)
			outcome <- streamOutcome{resp: resp, err: err}
		}(p)

		streamed := false
		for chunk := range chunks {
			streamed = true
			if onDelta != nil {
				onDelta(chunk)
			}
		}
		out := <-outcome

		if out.err == nil {
			return out.resp, p, nil
		}
		if streamed {
			// Partial output already reached the caller; replaying the
			// conversation elsewhere would duplicate it.
			return out.resp, p, out.err
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), out.err))
	}

	return Response{}, nil, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

// ToolResultEntry pairs a tool call ID with the result text fed back to the
// model.
type ToolResultEntry struct {
	ToolCallID string
	Result     string
}

// Step describes one completed model step in tool-augmented mode.
type Step struct {
	Index       int
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResultEntry
	Usage       *TokenUsage
}

// ToolRunOptions configures a bounded tool-augmented generation.
type ToolRunOptions struct {
	// MaxSteps bounds the number of model round trips. Zero means 1.
	MaxSteps int

	// Execute runs a single tool call and returns its result text.
	// Tool failures are data: Execute must return failure text, not panic.
	Execute func(ctx context.Context, call ToolCall) string

	// OnStepFinish receives each completed step's tool calls and results so
	// the caller can persist them as they occur. Optional.
	OnStepFinish func(step Step)

	// OnChunk receives the cumulative text so far as the model streams it,
	// at most once per throttle window. When set, every step runs in
	// streaming mode. The final aggregate is always delivered.
	OnChunk func(cumulative string)

	// Throttle overrides DefaultStreamThrottle for OnChunk when positive.
	Throttle time.Duration
}

// GenerateWithTools runs a bounded model/tool round-trip loop.
//
// Each step invokes the provider chain; tool calls in the response are
// executed in issue order and their results folded back into the
// conversation before the next step. The loop ends when the model answers
// without tool calls or the step budget is exhausted; exhaustion is not an
// error, the accumulated text is returned as the result.
//
// With opts.OnChunk set, each step streams: text deltas reach the callback
// as throttled cumulative snapshots while the model is still producing the
// step, and the final aggregate is delivered once the loop ends.
func (g *Gateway) GenerateWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, opts ToolRunOptions) (Result, error) {
	if opts.Execute == nil {
		return Result{}, errors.New("llm: ToolRunOptions.Execute is required")
	}

	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 1
	}
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultStreamThrottle
	}

	conversation := make([]ChatMessage, len(messages))
	copy(conversation, messages)

	var text strings.Builder
	var result Result
	start := time.Now()
	var lastEmit time.Time

	for stepIndex := 0; stepIndex < maxSteps; stepIndex++ {
		var resp Response
		var p Provider
		var err error
		if opts.OnChunk != nil {
			base := text.String()
			var partial strings.Builder
			resp, p, err = g.StreamChatWithTools(ctx, conversation, tools, func(delta string) {
				if result.TimeToFirstToken == 0 {
					result.TimeToFirstToken = time.Since(start)
				}
				partial.WriteString(delta)
				if time.Since(lastEmit) >= throttle {
					opts.OnChunk(joinSteps(base, partial.String()))
					lastEmit = time.Now()
				}
			})
		} else {
			resp, p, err = g.ChatWithTools(ctx, conversation, tools)
		}
		if err != nil {
			return Result{}, err
		}

		result.Provider = p.Name()
		result.Model = p.Model()
		result.Steps = stepIndex + 1
		result.Usage.Add(resp.Usage)

		if resp.Content != "" {
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			result.Text = text.String()
			if opts.OnStepFinish != nil {
				opts.OnStepFinish(Step{Index: stepIndex, Text: resp.Content, Usage: resp.Usage})
			}
			if opts.OnChunk != nil {
				opts.OnChunk(result.Text)
			}
			return result, nil
		}

		conversation = append(conversation, ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		// Dispatch sequentially in issue order so the model sees a
		// deterministic call-to-result mapping.
		toolResults := make([]ToolResultEntry, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			resultText := opts.Execute(ctx, call)
			toolResults = append(toolResults, ToolResultEntry{
				ToolCallID: call.ID,
				Result:     resultText,
			})
			conversation = append(conversation, ToolResultMessage(call.ID, resultText))
		}

		if opts.OnStepFinish != nil {
			opts.OnStepFinish(Step{
				Index:       stepIndex,
				Text:        resp.Content,
				ToolCalls:   resp.ToolCalls,
				ToolResults: toolResults,
				Usage:       resp.Usage,
			})
		}
	}

	// Step budget exhausted: partial progress is a valid outcome.
	result.Text = text.String()
	if opts.OnChunk != nil {
		opts.OnChunk(result.Text)
	}
	return result, nil
}

// joinSteps joins the text of completed steps with an in-flight partial.
func joinSteps(base, partial string) string {
	switch {
	case base == "":
		return partial
	case partial == "":
		return base
	default:
		return base + "\n" + partial
	}
}

// DefaultStreamThrottle is the minimum interval between OnChunk callbacks.
const DefaultStreamThrottle = 100 * time.Millisecond

// StreamOptions configures a streaming generation.
type StreamOptions struct {
	// OnChunk receives the cumulative text so far, at most once per
	// throttle window. The final aggregate is always delivered.
	OnChunk func(cumulative string)

	// Throttle overrides DefaultStreamThrottle when positive.
	Throttle time.Duration
}

// GenerateStream streams a completion, delivering cumulative text through
// opts.OnChunk. Failover applies per attempt: if a provider fails before
// emitting any text the next provider is tried; once chunks have been
// delivered the attempt is not replayed elsewhere.
func (g *Gateway) GenerateStream(ctx context.Context, messages []ChatMessage, opts StreamOptions) (Result, error) {
	throttle := opts.Throttle
	if throttle <= 0 {
		throttle = DefaultStreamThrottle
	}

	var errs []error
	for _, p := range g.providers {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		result, streamed, err := g.streamFrom(ctx, p, messages, opts.OnChunk, throttle)
		if err == nil {
			return result, nil
		}
		if streamed {
			// Partial output already reached the caller; replaying the
			// conversation against another provider would duplicate it.
			return result, err
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return Result{}, fmt.Errorf("all providers failed: %w", errors.Join(errs...))
}

type streamOutcome struct {
	resp Response
	err  error
}

// streamFrom runs one streaming attempt against a single provider.
// streamed reports whether any chunk reached the caller.
func (g *Gateway) streamFrom(ctx context.Context, p Provider, messages []ChatMessage, onChunk func(string), throttle time.Duration) (Result, bool, error) {
	chunks := make(chan string, 100)
	outcome := make(chan streamOutcome, 1)

	go func() {
		defer close(chunks)
		resp, err := p.StreamChatWithTools(ctx, messages, nil, chunks)
		outcome <- streamOutcome{resp: resp, err: err}
	}()

	start := time.Now()
	var cumulative strings.Builder
	var ttft time.Duration
	var lastEmit time.Time
	streamed := false
	pending := false

	for chunk := range chunks {
		if !streamed {
			ttft = time.Since(start)
			streamed = true
		}
		cumulative.WriteString(chunk)
		pending = true

		if onChunk != nil && time.Since(lastEmit) >= throttle {
			onChunk(cumulative.String())
			lastEmit = time.Now()
			pending = false
		}
	}

	out := <-outcome

	result := Result{
		Text:             cumulative.String(),
		Provider:         p.Name(),
		Model:            p.Model(),
		TimeToFirstToken: ttft,
		Steps:            1,
	}
	result.Usage.Add(out.resp.Usage)

	if out.err != nil {
		return result, streamed, out.err
	}

	// Flush the final aggregate if the throttle swallowed the tail.
	if onChunk != nil && (pending || !streamed) {
		onChunk(result.Text)
	}

	return result, streamed, nil
}
