package interview

import (
	"fmt"
	"regexp"
	"strings"
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,50}$`)

// ConversationID identifies a finished conversation in the transcript source.
type ConversationID string

// ParseConversationID trims and validates a conversation id. Ids that do not
// match the expected format are rejected with ErrInvalidInput.
func ParseConversationID(s string) (ConversationID, error) {
	id := ConversationID(strings.TrimSpace(s))
	if !id.Valid() {
		return "", fmt.Errorf("%w: conversation id must be 10-50 characters of letters, digits, '-' or '_'", ErrInvalidInput)
	}
	return id, nil
}

func (id ConversationID) Valid() bool {
	return conversationIDPattern.MatchString(string(id))
}

func (id ConversationID) String() string {
	return string(id)
}
