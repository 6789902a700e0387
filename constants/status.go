package constants

// Decision is the outcome of a stage, evaluated by the decision engine.
type Decision string

// Stable values (these exact strings are logged and stored).
const (
	DecisionSave             Decision = "save"
	DecisionEscalateToStage2 Decision = "escalate_to_stage2"
	DecisionEscalateToStage3 Decision = "escalate_to_stage3"
	DecisionError            Decision = "error"
)

// Stage names reported as stage_used / stages_attempted.
const (
	StageTabular          = "csv_excel_parse"
	StageTargeted         = "ia_targeted"
	StageExtraction       = "llm_mode"
	StageOCR              = "ocr"
	StageFallbackPrevious = "llm_mode_fallback_previous"
)
