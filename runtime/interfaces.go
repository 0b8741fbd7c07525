package runtime

import "context"

// Initializer interface allows nodes to perform startup initialization.
// Nodes implementing this interface will have Initialize called at container startup.
type Initializer interface {
	// Initialize is called once when the container starts up.
	// Use this to establish connections, initialize clients, etc.
	// Config is already validated when this is called.
	Initialize(ctx context.Context) error
}

// Shutdowner interface allows nodes to perform graceful shutdown.
type Shutdowner interface {
	// Shutdown is called during graceful shutdown, in reverse registration order.
	Shutdown(ctx context.Context) error
}

// Batch is one invocation request from the host.
type Batch struct {
	Items          []Item         `json:"items"`
	Parameters     map[string]any `json:"parameters"`
	ContinueOnFail bool           `json:"continueOnFail"`
}
