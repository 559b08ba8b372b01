package errors

import "fmt"

// Stage names the part of a run a fatal error came from.
type Stage string

const (
	StageConfig    Stage = "config"
	StageOpen      Stage = "open_dataset"
	StageFields    Stage = "ensure_fields"
	StageScan      Stage = "scan"
	StageEnumerate Stage = "enumerate"
)

// StageError wraps a fatal error with the run stage it aborted.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Fatal wraps err with stage. A nil err stays nil.
func Fatal(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
