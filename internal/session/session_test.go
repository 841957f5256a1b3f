package session

import (
	"errors"
	"testing"
	"time"
)

func TestSession_TakeReturnsConcatenationAndClears(t *testing.T) {
	s := NewSession("session-1")
	for _, chunk := range []string{"Hello", ", ", "World"} {
		if err := s.Append([]byte(chunk)); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	if s.Len() != 12 {
		t.Fatalf("expected 12 buffered bytes, got %d", s.Len())
	}

	got := s.Take()
	if string(got) != "Hello, World" {
		t.Fatalf("unexpected utterance: %q", got)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty buffer after take, got %d bytes", s.Len())
	}

	if err := s.Append([]byte("next")); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	if string(got) != "Hello, World" {
		t.Fatalf("taken snapshot was mutated by reuse: %q", got)
	}
	if string(s.Take()) != "next" {
		t.Fatal("expected only the next utterance in the reused buffer")
	}
}

func TestSession_TakeOnEmptyBuffer(t *testing.T) {
	s := NewSession("session-1")
	if got := s.Take(); len(got) != 0 {
		t.Fatalf("expected empty utterance, got %q", got)
	}
}

func TestSession_Reset(t *testing.T) {
	s := NewSession("session-1")
	_ = s.Append([]byte("stale"))
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty buffer after reset, got %d", s.Len())
	}
}

func TestSession_CloseReleasesBuffer(t *testing.T) {
	s := NewSession("session-1")
	_ = s.Append([]byte("audio"))
	s.Close()

	if !s.Closed() {
		t.Fatal("expected session to be closed")
	}
	if s.Len() != 0 {
		t.Fatalf("expected released buffer, got %d bytes", s.Len())
	}
	if err := s.Append([]byte("late")); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if got := s.Take(); got != nil {
		t.Fatalf("expected nil take after close, got %q", got)
	}
}

func TestSession_BeginUtteranceSerializes(t *testing.T) {
	s := NewSession("session-1")
	done := s.beginUtterance()

	entered := make(chan struct{})
	go func() {
		release := s.beginUtterance()
		close(entered)
		release()
	}()

	select {
	case <-entered:
		t.Fatal("second utterance started while the first was outstanding")
	case <-time.After(30 * time.Millisecond):
	}

	done()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("second utterance never started")
	}
}
