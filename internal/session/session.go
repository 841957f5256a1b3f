package session

import (
	"bytes"
	"sync"
)

// Session is the server-side state of one client connection. Its audio buffer
// only ever holds bytes received since the last end_of_stream.
type Session struct {
	ID string

	mu     sync.Mutex
	audio  bytes.Buffer
	closed bool

	processing sync.Mutex
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

func (s *Session) Append(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.audio.Write(chunk)
	return nil
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audio.Len()
}

// Take returns a copy of the buffered utterance and clears the buffer for reuse.
func (s *Session) Take() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	out := bytes.Clone(s.audio.Bytes())
	s.audio.Reset()
	return out
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio.Reset()
}

// Close releases the buffer. Further appends fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.audio = bytes.Buffer{}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// beginUtterance serializes end_of_stream cycles of this session.
func (s *Session) beginUtterance() (done func()) {
	s.processing.Lock()
	return s.processing.Unlock
}
