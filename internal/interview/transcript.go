package interview

import (
	"strings"
)

type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// NormalizeRole maps any role other than agent to user.
func NormalizeRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAgent)) {
		return RoleAgent
	}
	return RoleUser
}

// TranscriptEntry is a single turn of the conversation.
type TranscriptEntry struct {
	Role             Role     `json:"role"`
	Message          string   `json:"message"`
	TimestampSeconds *float64 `json:"timestampSeconds,omitempty"`
}

// FormatTranscript renders entries as the plain text sent for scoring.
// Empty messages are skipped.
func FormatTranscript(entries []TranscriptEntry) string {
	var builder strings.Builder
	for _, entry := range entries {
		message := strings.TrimSpace(entry.Message)
		if message == "" {
			continue
		}

		speaker := "Candidate"
		if entry.Role == RoleAgent {
			speaker = "Interviewer"
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(speaker)
		builder.WriteString(": ")
		builder.WriteString(message)
	}
	return builder.String()
}
