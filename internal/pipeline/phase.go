package pipeline

import (
	"fmt"
)

// Phase is the client-visible state of one analysis attempt.
type Phase int

const (
	RetrievingTranscript Phase = iota
	Scoring
	Deliberating
	Done
	Failed
)

var phaseNames = map[Phase]string{
	RetrievingTranscript: "retrieving",
	Scoring:              "scoring",
	Deliberating:         "deliberating",
	Done:                 "done",
	Failed:               "failed",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == Done || p == Failed
}

func (p Phase) MarshalText() ([]byte, error) {
	name, ok := phaseNames[p]
	if !ok {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return []byte(name), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// canTransition allows forward moves along the happy path and a move to
// Failed from any non-terminal phase.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return to == from+1
}
