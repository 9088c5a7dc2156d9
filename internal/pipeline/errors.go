package pipeline

import (
	"fmt"

	"github.com/bridgit-ai/bridgit/pkg/history"
)

// StageFailure reports that a pipeline stage could not produce a result. When
// BothProvidersFailed is true the primary and every fallback provider were
// tried and all failed; otherwise the stage failed before or outside the
// provider call (empty capture, cancellation).
type StageFailure struct {
	Stage               history.Stage
	BothProvidersFailed bool
	Err                 error
}

func (e *StageFailure) Error() string {
	if e.BothProvidersFailed {
		return fmt.Sprintf("stage %s failed: all providers exhausted: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }
