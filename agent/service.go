// Package agent runs tool-augmented model loops over persisted conversations.
//
// Information Hiding:
// - Loop internals hidden
// - Provider communication hidden behind the gateway
// - Tool execution coordination hidden
// - Lifecycle state transitions hidden
package agent

import (
	"github.com/polarishq/polaris/cache"
	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/sandbox"
	"github.com/polarishq/polaris/storage"
)

// Service is the agent orchestrator. Constructed once per process and
// shared across runs; all collaborators are injected.
type Service struct {
	gateway *llm.Gateway
	store   storage.Store
	cache   *cache.Cache
	sandbox *sandbox.Sandbox
	config  Config
	cancels *cancelRegistry
}

// NewService creates the orchestrator with its collaborators.
func NewService(gateway *llm.Gateway, store storage.Store, c *cache.Cache, sb *sandbox.Sandbox, config Config) *Service {
	if c == nil {
		c = cache.New(cache.DefaultCapacity)
	}
	if sb == nil {
		sb = sandbox.Default()
	}
	return &Service{
		gateway: gateway,
		store:   store,
		cache:   c,
		sandbox: sb,
		config:  config.withDefaults(),
		cancels: newCancelRegistry(),
	}
}

// Cancel requests cooperative cancellation of the run processing messageID.
// The loop stops at its next step boundary; in-flight tool calls finish.
// Cancelling an unknown or finished run is a no-op.
func (s *Service) Cancel(messageID string) {
	s.cancels.cancel(messageID)
}
