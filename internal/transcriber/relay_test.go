package transcriber

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu sync.Mutex

	uploadErr   error
	uploadState FileState
	states      []FileState
	getFileErr  error
	answer      string
	answerErr   error

	uploaded     []byte
	uploadedMIME string
	getFileCalls int
	prompt       string
	answeredFile FileHandle
	deleted      []string
}

func (p *fakeProvider) UploadAudio(_ context.Context, audio []byte, mimeType string) (FileHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.uploadErr != nil {
		return FileHandle{}, p.uploadErr
	}
	p.uploaded = append([]byte(nil), audio...)
	p.uploadedMIME = mimeType
	return FileHandle{Name: "files/abc", URI: "https://files/abc", MIMEType: mimeType, State: p.uploadState}, nil
}

func (p *fakeProvider) GetFile(_ context.Context, name string) (FileHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getFileCalls++
	if p.getFileErr != nil {
		return FileHandle{}, p.getFileErr
	}
	state := FileStatePending
	if len(p.states) > 0 {
		state = p.states[0]
		p.states = p.states[1:]
	}
	return FileHandle{Name: name, URI: "https://files/abc", MIMEType: p.uploadedMIME, State: state}, nil
}

func (p *fakeProvider) GenerateAnswer(_ context.Context, prompt string, file FileHandle) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompt = prompt
	p.answeredFile = file
	if p.answerErr != nil {
		return "", p.answerErr
	}
	return p.answer, nil
}

func (p *fakeProvider) DeleteFile(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, name)
	return nil
}

func newTestRelay(p Provider) *Relay {
	return NewRelay(p, RelayConfig{
		MIMEType:          "audio/wav",
		Prompt:            "transcribe then answer",
		PollInterval:      time.Millisecond,
		ProcessingTimeout: 200 * time.Millisecond,
	})
}

func TestTranscribeAndAnswer_ReadyImmediately(t *testing.T) {
	p := &fakeProvider{uploadState: FileStateReady, answer: "Paris is the capital of France."}
	relay := newTestRelay(p)

	got, err := relay.TranscribeAndAnswer(context.Background(), []byte("HelloWorld"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Paris is the capital of France." {
		t.Fatalf("unexpected answer: %q", got)
	}
	if !bytes.Equal(p.uploaded, []byte("HelloWorld")) || p.uploadedMIME != "audio/wav" {
		t.Fatalf("unexpected upload: %q (%s)", p.uploaded, p.uploadedMIME)
	}
	if p.getFileCalls != 0 {
		t.Fatalf("expected no polling, got %d calls", p.getFileCalls)
	}
	if p.prompt != "transcribe then answer" || p.answeredFile.URI != "https://files/abc" {
		t.Fatalf("unexpected generation request: %q %+v", p.prompt, p.answeredFile)
	}
	if len(p.deleted) != 1 || p.deleted[0] != "files/abc" {
		t.Fatalf("expected uploaded file to be deleted, got %v", p.deleted)
	}
}

func TestTranscribeAndAnswer_PollsUntilReady(t *testing.T) {
	p := &fakeProvider{
		uploadState: FileStatePending,
		states:      []FileState{FileStatePending, FileStatePending, FileStateReady},
		answer:      "ok",
	}
	relay := newTestRelay(p)

	got, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected answer: %q", got)
	}
	if p.getFileCalls != 3 {
		t.Fatalf("expected 3 status polls, got %d", p.getFileCalls)
	}
}

func TestTranscribeAndAnswer_ProcessingFailed(t *testing.T) {
	p := &fakeProvider{
		uploadState: FileStatePending,
		states:      []FileState{FileStateFailed},
		answer:      "never",
	}
	relay := newTestRelay(p)

	_, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	var pfe *ProcessingFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("expected ProcessingFailedError, got %v", err)
	}
	if p.prompt != "" {
		t.Fatal("expected no generation request after failed processing")
	}
	if len(p.deleted) != 1 {
		t.Fatalf("expected cleanup after failure, got %v", p.deleted)
	}
}

func TestTranscribeAndAnswer_StatusLookupError(t *testing.T) {
	p := &fakeProvider{uploadState: FileStatePending, getFileErr: errors.New("503")}
	relay := newTestRelay(p)

	_, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	var pfe *ProcessingFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("expected ProcessingFailedError, got %v", err)
	}
	if !errors.Is(err, p.getFileErr) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
}

func TestTranscribeAndAnswer_Timeout(t *testing.T) {
	p := &fakeProvider{uploadState: FileStatePending}
	relay := NewRelay(p, RelayConfig{
		MIMEType:          "audio/wav",
		Prompt:            "p",
		PollInterval:      time.Millisecond,
		ProcessingTimeout: 20 * time.Millisecond,
	})

	_, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Waited != 20*time.Millisecond || te.File != "files/abc" {
		t.Fatalf("unexpected timeout error: %+v", te)
	}
}

func TestTranscribeAndAnswer_CallerCancellation(t *testing.T) {
	p := &fakeProvider{uploadState: FileStatePending}
	relay := newTestRelay(p)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := relay.TranscribeAndAnswer(ctx, []byte("audio"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.deleted) != 1 {
		t.Fatalf("expected cleanup to run despite cancellation, got %v", p.deleted)
	}
}

func TestTranscribeAndAnswer_UploadError(t *testing.T) {
	p := &fakeProvider{uploadErr: errors.New("quota exceeded")}
	relay := newTestRelay(p)

	_, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	var ue *UploadError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if len(p.deleted) != 0 {
		t.Fatalf("expected no cleanup without an upload, got %v", p.deleted)
	}
}

func TestTranscribeAndAnswer_AnswerError(t *testing.T) {
	p := &fakeProvider{uploadState: FileStateReady, answerErr: errors.New("blocked")}
	relay := newTestRelay(p)

	_, err := relay.TranscribeAndAnswer(context.Background(), []byte("audio"))
	var ae *AnswerGenerationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AnswerGenerationError, got %v", err)
	}
	if !errors.Is(err, p.answerErr) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
}

func TestTranscribeAndAnswer_EmptyAudio(t *testing.T) {
	p := &fakeProvider{uploadState: FileStateReady, answer: "never"}
	relay := newTestRelay(p)

	_, err := relay.TranscribeAndAnswer(context.Background(), nil)
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if p.uploaded != nil {
		t.Fatal("expected no upload for empty audio")
	}
}

func TestFileStateString(t *testing.T) {
	cases := map[FileState]string{
		FileStatePending: "pending",
		FileStateReady:   "ready",
		FileStateFailed:  "failed",
		FileState(42):    "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("FileState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
