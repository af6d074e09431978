package ai

import (
	"context"
)

// Generator produces a textual answer for a system instruction and user content.
type Generator interface {
	GenerateContent(ctx context.Context, system, user string) (string, error)
	Model() string
}
