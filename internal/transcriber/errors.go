package transcriber

import (
	"errors"
	"fmt"
	"time"
)

var ErrEmptyAudio = errors.New("no audio to transcribe")

type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload audio: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// ProcessingFailedError means the remote service could not process the uploaded audio.
type ProcessingFailedError struct {
	File   string
	Reason string
	Err    error
}

func (e *ProcessingFailedError) Error() string {
	msg := "audio processing failed"
	if e.File != "" {
		msg += " for " + e.File
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessingFailedError) Unwrap() error {
	return e.Err
}

type TimeoutError struct {
	File   string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("audio processing did not finish within %s", e.Waited)
	}
	return fmt.Sprintf("audio processing of %s did not finish within %s", e.File, e.Waited)
}

type AnswerGenerationError struct {
	Err error
}

func (e *AnswerGenerationError) Error() string {
	return fmt.Sprintf("generate answer: %v", e.Err)
}

func (e *AnswerGenerationError) Unwrap() error {
	return e.Err
}
