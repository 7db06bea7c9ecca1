package schemas

import "context"

// VLMClient defines a standard interface for interacting with a
// vision-language model, abstracting the specifics of the underlying
// provider (e.g., Gemini over HTTP or the genai SDK). The caller is
// responsible for parsing the returned text further; transport-level
// retries are the implementation's responsibility and a returned error
// means those retries are exhausted.
type VLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}

// ScreenSource provides the current screenshot on demand, one still image
// per request. Capture itself (display APIs, frame grabbing) lives outside
// this module; implementations here are shims over already-encoded images.
type ScreenSource interface {
	Capture(ctx context.Context) (Screenshot, error)
}

// ChangeFeed is a stream of screen-change notifications from an
// independently-clocked external producer. Subscribe returns a channel that
// receives one value per raw change event and an unsubscribe function that
// releases the subscription and closes the channel. Debouncing is the
// consumer's concern.
type ChangeFeed interface {
	Subscribe() (<-chan struct{}, func())
}
