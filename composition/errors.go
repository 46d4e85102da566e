package composition

import "fmt"

// NoClipsFoundError is a clip directory that is missing or holds no clips
type NoClipsFoundError struct {
	Path string
	Err  error
}

func (e *NoClipsFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no video clips found in directory %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("no video clips found in directory %s", e.Path)
}

func (e *NoClipsFoundError) Unwrap() error { return e.Err }

// SequencingFailedError is a timeline that could not be built or rendered
type SequencingFailedError struct {
	Reason string
	Err    error
}

func (e *SequencingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clip sequencing failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("clip sequencing failed: %s", e.Reason)
}

func (e *SequencingFailedError) Unwrap() error { return e.Err }

// OutputFailedError is a failure producing the final video file
type OutputFailedError struct {
	Reason string
	Err    error
}

func (e *OutputFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("output generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("output generation failed: %s", e.Reason)
}

func (e *OutputFailedError) Unwrap() error { return e.Err }
