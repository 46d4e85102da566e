package audio

import "fmt"

// LoadFailedError reports a file that could not be opened or decoded
type LoadFailedError struct {
	Path string
	Err  error
}

func (e *LoadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load audio file %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to load audio file %s", e.Path)
}

func (e *LoadFailedError) Unwrap() error { return e.Err }

// UnsupportedFormatError names the file extension that no decoder handles
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported audio format: %s", e.Format)
}

// AnalysisFailedError is a fatal failure inside the analysis pipeline
type AnalysisFailedError struct {
	Reason string
	Err    error
}

func (e *AnalysisFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio analysis failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio analysis failed: %s", e.Reason)
}

func (e *AnalysisFailedError) Unwrap() error { return e.Err }

// InvalidParametersError is an invalid analysis configuration
type InvalidParametersError struct {
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid audio parameters: %s", e.Reason)
}
