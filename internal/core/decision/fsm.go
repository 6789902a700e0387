package decision

import (
	"fmt"

	"github.com/joseph-ayodele/wine-ingest/constants"
)

// State is a node of the escalation machine.
type State int

const (
	Stage1 State = iota + 1
	Stage2
	Stage3
	Stage4
	Accepted
	Failed
)

func (s State) String() string {
	switch s {
	case Stage1:
		return constants.StageTabular
	case Stage2:
		return constants.StageTargeted
	case Stage3:
		return constants.StageExtraction
	case Stage4:
		return constants.StageOCR
	case Accepted:
		return "accepted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no stage runs after s.
func (s State) Terminal() bool {
	return s == Accepted || s == Failed
}

// rank orders states along the escalation direction. OCR sits level with Stage 2
// since it always hands over to Stage 3.
func (s State) rank() int {
	switch s {
	case Stage1:
		return 1
	case Stage2, Stage4:
		return 2
	case Stage3:
		return 3
	case Accepted, Failed:
		return 4
	default:
		return 0
	}
}

// Initial is the entry state for a routed file kind.
func Initial(kind constants.FileKind) State {
	switch kind {
	case constants.Tabular:
		return Stage1
	case constants.Document:
		return Stage4
	default:
		return Failed
	}
}

// Next is the pure transition function. Transitions never move back to an
// earlier stage; an edge the machine does not have is an error and lands in Failed.
func Next(s State, d constants.Decision) (State, error) {
	if s.Terminal() {
		return s, fmt.Errorf("state %s is terminal", s)
	}
	switch d {
	case constants.DecisionSave:
		if s == Stage4 {
			return Failed, fmt.Errorf("%s cannot save records", s)
		}
		return Accepted, nil
	case constants.DecisionError:
		return Failed, nil
	case constants.DecisionEscalateToStage2:
		if s == Stage1 {
			return Stage2, nil
		}
	case constants.DecisionEscalateToStage3:
		if s == Stage1 || s == Stage2 || s == Stage4 {
			return Stage3, nil
		}
	}
	return Failed, fmt.Errorf("no transition from %s on %q", s, d)
}

// Monotonic reports whether the move from a to b follows the escalation order.
func Monotonic(a, b State) bool {
	return b.rank() > a.rank()
}
