package decision

import (
	"github.com/joseph-ayodele/wine-ingest/constants"
	"github.com/joseph-ayodele/wine-ingest/internal/entity"
)

// Thresholds gate the save decision of the deterministic and targeted stages.
type Thresholds struct {
	SchemaScore float64
	ValidRows   float64
}

// DefaultThresholds returns 0.7 for the schema score and 0.6 for valid rows.
func DefaultThresholds() Thresholds {
	return Thresholds{SchemaScore: 0.7, ValidRows: 0.6}
}

// Engine turns stage metrics into a decision. It holds no state besides the
// thresholds, so identical inputs always give identical decisions.
type Engine struct {
	th Thresholds
}

func NewEngine(th Thresholds) *Engine {
	if th.SchemaScore <= 0 && th.ValidRows <= 0 {
		th = DefaultThresholds()
	}
	return &Engine{th: th}
}

func (e *Engine) Thresholds() Thresholds { return e.th }

// SchemaScore is the share of required fields bound to a column.
func SchemaScore(m *entity.HeaderMapping) float64 {
	if m == nil {
		return 0
	}
	return float64(m.MappedRequired()) / float64(len(entity.RequiredFields))
}

// ValidRowsRatio is valid/total, 0 when there are no rows.
func ValidRowsRatio(valid, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(valid) / float64(total)
}

// Accepts reports whether both scores reach their thresholds.
func (e *Engine) Accepts(m entity.Metrics) bool {
	return m.SchemaScore >= e.th.SchemaScore && m.ValidRows >= e.th.ValidRows
}

// Decide evaluates the metrics a stage produced. Stage 1 escalates to Stage 2,
// Stage 2 to Stage 3; Stage 3 saves whenever at least one record is valid.
func (e *Engine) Decide(stage State, m entity.Metrics) constants.Decision {
	switch stage {
	case Stage1:
		if e.Accepts(m) {
			return constants.DecisionSave
		}
		return constants.DecisionEscalateToStage2
	case Stage2:
		if e.Accepts(m) {
			return constants.DecisionSave
		}
		return constants.DecisionEscalateToStage3
	case Stage3:
		if m.RowsValid >= 1 {
			return constants.DecisionSave
		}
		return constants.DecisionError
	case Stage4:
		if m.TextExtractedLength > 0 {
			return constants.DecisionEscalateToStage3
		}
		return constants.DecisionError
	default:
		return constants.DecisionError
	}
}
