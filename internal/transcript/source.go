package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/hh-interviewer/internal/interview"
)

// Conversation statuses reported by the transcript source.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Source returns the current state of a conversation.
type Source interface {
	GetConversation(ctx context.Context, id interview.ConversationID) (*Conversation, error)
}

// Conversation is the raw view of a conversation as the source reports it.
type Conversation struct {
	Status  string
	Entries []RawEntry
}

// RawEntry is one transcript turn before normalization.
type RawEntry struct {
	Role           string   `mapstructure:"role"`
	Message        string   `mapstructure:"message"`
	TimeInCallSecs *float64 `mapstructure:"time_in_call_secs"`
}

// StatusError reports a non-2xx answer of the transcript source.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcript source returned bad status: %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return interview.ErrUpstream
}

type readiness int

const (
	notReady readiness = iota
	ready
	failed
)

func classify(status string) readiness {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case StatusDone:
		return ready
	case StatusFailed:
		return failed
	default:
		return notReady
	}
}

func normalize(entries []RawEntry) []interview.TranscriptEntry {
	result := make([]interview.TranscriptEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, interview.TranscriptEntry{
			Role:             interview.NormalizeRole(entry.Role),
			Message:          entry.Message,
			TimestampSeconds: entry.TimeInCallSecs,
		})
	}
	return result
}
