package domain

import "fmt"

// EngineError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type EngineError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// NewEngineError creates a new EngineError.
func NewEngineError(code int, msg string) *EngineError {
	return &EngineError{Code: code, Message: msg}
}

// WrapEngineError creates an EngineError that includes a cause.
func WrapEngineError(code int, msg string, cause error) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Orchestrator / Scheduler errors (-33010 to -33039) ----

var (
	ErrPhaseTimeout      = &EngineError{Code: -33010, Message: "phase exceeded its timeout"}
	ErrPhasePanic        = &EngineError{Code: -33011, Message: "phase work panicked"}
	ErrNoPhases          = &EngineError{Code: -33012, Message: "pipeline has no phases"}
	ErrSessionNotStarted = &EngineError{Code: -33013, Message: "session has not been started"}
	ErrWorkflowAborted   = &EngineError{Code: -33014, Message: "workflow aborted after recovery exhaustion"}
)

// ---- Retry / Recovery errors (-33040 to -33069) ----

var (
	ErrRetriesExhausted  = &EngineError{Code: -33040, Message: "operation retries exhausted"}
	ErrRecoveryExhausted = &EngineError{Code: -33041, Message: "recovery attempts exhausted"}
	ErrNoAttempts        = &EngineError{Code: -33042, Message: "max attempts must be at least 1"}
)

// ---- Event log / Summary errors (-33070 to -33099) ----

var (
	ErrSinkClosed     = &EngineError{Code: -33070, Message: "event sink is closed"}
	ErrSummaryMissing = &EngineError{Code: -33071, Message: "no summary has been written"}
)

// ---- Store / Config errors (-33130 to -33159) ----

var (
	ErrStoreInit       = &EngineError{Code: -33130, Message: "failed to initialize store"}
	ErrStoreQuery      = &EngineError{Code: -33131, Message: "store query failed"}
	ErrStoreWrite      = &EngineError{Code: -33132, Message: "store write failed"}
	ErrSessionNotFound = &EngineError{Code: -33133, Message: "session not found"}
	ErrConfigInvalid   = &EngineError{Code: -33136, Message: "invalid configuration"}
)
