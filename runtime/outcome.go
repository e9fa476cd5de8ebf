package runtime

import (
	"errors"

	"github.com/numlab/numerosity/flow"
	"github.com/numlab/numerosity/types"
)

// Process exit codes of the run command.
const (
	ExitCodeFinished    = 0 // every trial completed and stored
	ExitCodeAborted     = 1 // participant quit, or the session failed
	ExitCodeConfig      = 2 // invalid configuration or settings
	ExitCodePersistence = 3 // the result could not be stored
)

// ExitCode maps a session outcome and its error to a process exit code.
// A persistence failure wins over the outcome because the data is at risk.
func ExitCode(outcome types.OutcomeStatus, err error) int {
	if errors.Is(err, flow.ErrPersistence) {
		return ExitCodePersistence
	}
	switch outcome {
	case types.OutcomeFinished:
		return ExitCodeFinished
	default:
		return ExitCodeAborted
	}
}
