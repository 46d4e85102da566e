package video

import "fmt"

// LoadFailedError reports a clip or directory that could not be read
type LoadFailedError struct {
	Path string
	Err  error
}

func (e *LoadFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load video %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to load video %s", e.Path)
}

func (e *LoadFailedError) Unwrap() error { return e.Err }

// EncodingFailedError is a failure writing or muxing the output video
type EncodingFailedError struct {
	Reason string
	Err    error
}

func (e *EncodingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("video encoding failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("video encoding failed: %s", e.Reason)
}

func (e *EncodingFailedError) Unwrap() error { return e.Err }

// FrameProcessingFailedError is a failure extracting or transforming a frame
type FrameProcessingFailedError struct {
	Reason string
	Err    error
}

func (e *FrameProcessingFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("frame processing failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("frame processing failed: %s", e.Reason)
}

func (e *FrameProcessingFailedError) Unwrap() error { return e.Err }
