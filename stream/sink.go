// Package stream persists incremental agent output as it is produced.
//
// Information Hiding:
// - Persistence write frequency hidden behind the sink
// - De-duplication of unchanged partials internalized
package stream

import (
	"context"
	"time"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/storage"
)

// DefaultWriteInterval bounds how often partial text reaches the store.
const DefaultWriteInterval = 100 * time.Millisecond

// Sink persists the streaming output of one message. Partial writes are
// throttled and de-duplicated; the terminal write always goes through with
// the completion flag set so consumers can tell streaming from done.
//
// Not safe for concurrent use: a run streams from a single goroutine.
type Sink struct {
	store     storage.Store
	messageID string
	interval  time.Duration

	lastWrite   time.Time
	lastContent string
	now         func() time.Time
}

// NewSink creates a sink for a message with the default write interval.
func NewSink(store storage.Store, messageID string) *Sink {
	return &Sink{
		store:     store,
		messageID: messageID,
		interval:  DefaultWriteInterval,
		now:       time.Now,
	}
}

// WithInterval overrides the partial-write interval. Zero disables
// throttling so every partial is written.
func (s *Sink) WithInterval(interval time.Duration) *Sink {
	s.interval = interval
	return s
}

// Text persists cumulative partial text, skipping writes that land inside
// the throttle window or carry no new content. Write errors are swallowed:
// a failed partial is retried implicitly by the next one, and the terminal
// write in Final is the one that must land.
func (s *Sink) Text(ctx context.Context, content string) {
	if content == s.lastContent {
		return
	}
	now := s.now()
	if s.interval > 0 && !s.lastWrite.IsZero() && now.Sub(s.lastWrite) < s.interval {
		return
	}
	if err := s.store.StreamMessageContent(ctx, s.messageID, content, false); err != nil {
		return
	}
	s.lastWrite = now
	s.lastContent = content
}

// Final persists the terminal content with the completion flag set.
func (s *Sink) Final(ctx context.Context, content string) error {
	s.lastContent = content
	return s.store.StreamMessageContent(ctx, s.messageID, content, true)
}

// ToolCall appends a tool-call event for the message.
func (s *Sink) ToolCall(ctx context.Context, call llm.ToolCall) error {
	return s.store.AppendToolCall(ctx, s.messageID, call)
}

// ToolResult appends a tool-result event for the message.
func (s *Sink) ToolResult(ctx context.Context, toolCallID, result string) error {
	return s.store.AppendToolResult(ctx, s.messageID, toolCallID, result)
}
