package assistant

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// Bootstrap guarantees a single assistant configuration per process.
//
// The first EnsureAssistant call creates the assistant upstream; later calls
// return the cached id. A preconfigured OPENAI_ASSISTANT_ID seeds the cache
// so deployments can pin an existing assistant. The id, once assigned, is
// never replaced during the process lifetime.
type Bootstrap struct {
	client Client

	mu          sync.Mutex
	assistantID string
}

func NewBootstrap(client Client) *Bootstrap {
	b := &Bootstrap{client: client}
	if id := os.Getenv("OPENAI_ASSISTANT_ID"); id != "" {
		b.assistantID = id
		slog.Info("Using preconfigured assistant", "assistant_id", id)
	}
	return b
}

// EnsureAssistant returns the singleton assistant id, creating the assistant
// upstream on first use. Creation failure is not cached, so a later request
// retries; the relay surfaces the failure as a pre-stream error either way.
func (b *Bootstrap) EnsureAssistant(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.assistantID != "" {
		return b.assistantID, nil
	}
	id, err := b.client.CreateAssistant(ctx)
	if err != nil {
		return "", err
	}
	b.assistantID = id
	return id, nil
}
