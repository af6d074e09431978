package interview

import (
	"errors"
)

var (
	// ErrInvalidInput marks input rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited marks a request denied by the rate limiter.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotReady marks a transcript that was still processing when polling gave up.
	ErrNotReady = errors.New("transcript not yet available")
	// ErrUpstream marks a hard error from, or an unreachable, external collaborator.
	ErrUpstream = errors.New("upstream error")
	// ErrValidationFailed marks a scoring payload that violated the result schema.
	ErrValidationFailed = errors.New("scoring payload failed validation")
	// ErrScoringFailed is the opaque error surfaced for any failed scoring call.
	ErrScoringFailed = errors.New("failed to score interview")
)

// ValidationError carries the diagnostic reason of a rejected scoring payload.
// The reason is meant for logs only.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return ErrValidationFailed.Error() + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindInvalidInput     Kind = "invalid_input"
	KindRateLimited      Kind = "rate_limited"
	KindNotReady         Kind = "not_ready"
	KindUpstream         Kind = "upstream"
	KindValidationFailed Kind = "validation_failed"
)

// KindOf classifies err into the error taxonomy. Validation failures take
// precedence over upstream errors so a scoring failure is reported by its cause.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindUnknown
	}
}

// PublicMessage returns the message that may be shown to an end user.
// Invalid input messages are returned verbatim since the caller can act on
// them; every other kind maps to a fixed text.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case "":
		return ""
	case KindInvalidInput:
		return err.Error()
	case KindRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case KindNotReady:
		return "The interview transcript is not available yet. Please try again in a few moments."
	case KindValidationFailed:
		return "Failed to score the interview. Please try again."
	case KindUpstream:
		if errors.Is(err, ErrScoringFailed) {
			return "Failed to score the interview. Please try again."
		}
		return "An external service is unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
