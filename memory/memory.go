// Package memory defines the memory-generation extension point for AI agents.
//
// The aggregation core does not depend on this package beyond its existence:
// implementations observe completed interactions and may derive long-term
// memories from them. The default NoOpGenerator is safe for production when
// no implementation is configured.
package memory

import "context"

// Generator defines the memory generation extension point.
type Generator interface {
	// GenerateAsync starts asynchronous memory generation. It returns
	// immediately; implementations handle their own error logging.
	GenerateAsync(ctx context.Context, req Request)

	// GenerateSync generates memory synchronously, blocking until the
	// generation completes or fails.
	GenerateSync(ctx context.Context, req Request) error

	// Shutdown waits for pending generation tasks to complete. Called during
	// graceful service shutdown.
	Shutdown(ctx context.Context) error
}

// Request contains the data needed to generate a memory.
type Request struct {
	AgentType string
	UserInput string
	Outcome   string
	Metadata  map[string]any
}

// NoOpGenerator is the default Generator implementation. It discards every
// request and is safe to use when memory generation is disabled.
type NoOpGenerator struct{}

// NewNoOpGenerator creates a new no-op memory generator.
func NewNoOpGenerator() *NoOpGenerator {
	return &NoOpGenerator{}
}

func (n *NoOpGenerator) GenerateAsync(_ context.Context, _ Request) {}

func (n *NoOpGenerator) GenerateSync(_ context.Context, _ Request) error {
	return nil
}

func (n *NoOpGenerator) Shutdown(_ context.Context) error {
	return nil
}

var _ Generator = (*NoOpGenerator)(nil)
