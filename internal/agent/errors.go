// internal/agent/errors.go
package agent

import "errors"

// ErrorCode is a string type used for structured error reporting from the
// guidance steps. Using a custom type ensures that only predefined constants
// can be used where an ErrorCode is expected.
type ErrorCode string

const (
	// ErrCodeNoPlanGenerated means the planning step produced an empty or
	// irrecoverably unparseable milestone list.
	ErrCodeNoPlanGenerated ErrorCode = "NO_PLAN_GENERATED"
	// ErrCodeImageEncodingFailed means a screenshot could not be serialized
	// for the model request.
	ErrCodeImageEncodingFailed ErrorCode = "IMAGE_ENCODING_FAILED"
	// ErrCodeMaxRetriesExceeded means the underlying capability call
	// exhausted its bounded retries.
	ErrCodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	// ErrCodeSessionNotActive means a command arrived with no live session
	// able to receive it.
	ErrCodeSessionNotActive ErrorCode = "SESSION_NOT_ACTIVE"
	// ErrCodeUnknown covers failures outside the defined taxonomy.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Sentinel errors for the step taxonomy. Steps wrap these with %w so callers
// can classify failures with errors.Is regardless of the wrapping message.
var (
	ErrNoPlanGenerated     = errors.New("no plan generated")
	ErrImageEncodingFailed = errors.New("image encoding failed")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrSessionNotActive    = errors.New("session not active")
)

// CodeForError maps an error chain onto its taxonomy code.
func CodeForError(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoPlanGenerated):
		return ErrCodeNoPlanGenerated
	case errors.Is(err, ErrImageEncodingFailed):
		return ErrCodeImageEncodingFailed
	case errors.Is(err, ErrMaxRetriesExceeded):
		return ErrCodeMaxRetriesExceeded
	case errors.Is(err, ErrSessionNotActive):
		return ErrCodeSessionNotActive
	default:
		return ErrCodeUnknown
	}
}
