package fsm

// Resolution stages. A stage name is reported alongside every failure so
// callers can tell which of the two network hops broke.
const (
	StageIdle            = "idle"
	StageParseAddress    = "parse_address"
	StageFetchMetadata   = "fetch_metadata"
	StageValidateAmount  = "validate_amount"
	StageRequestInvoice  = "request_invoice"
	StageBuildDescriptor = "build_descriptor"
	StageDone            = "done"
	StageFailed          = "failed"
	StageCancelled       = "cancelled"
)

const (
	EventParse    = "parse"
	EventDiscover = "discover"
	EventValidate = "validate"
	EventRequest  = "request"
	EventBuild    = "build"
	EventComplete = "complete"
	EventFail     = "fail"
	EventCancel   = "cancel"
)

// activeStages are the stages a resolution can fail or be cancelled in.
var activeStages = []string{
	StageParseAddress,
	StageFetchMetadata,
	StageValidateAmount,
	StageRequestInvoice,
	StageBuildDescriptor,
}

// IsTerminal reports whether no further transitions leave stage.
func IsTerminal(stage string) bool {
	switch stage {
	case StageDone, StageFailed, StageCancelled:
		return true
	default:
		return false
	}
}
