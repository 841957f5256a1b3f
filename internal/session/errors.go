package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionClosed marks a normal or abrupt client disconnect.
	ErrConnectionClosed = errors.New("connection closed")
	ErrSessionClosed    = errors.New("session closed")
)

type MalformedInputError struct {
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message: %s: %v", e.Reason, e.Err)
	}
	return "malformed message: " + e.Reason
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio chunk: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type UtteranceTooLargeError struct {
	Limit int
	Size  int
}

func (e *UtteranceTooLargeError) Error() string {
	return fmt.Sprintf("utterance of %d bytes exceeds the %d byte limit", e.Size, e.Limit)
}
