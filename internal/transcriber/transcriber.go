package transcriber

import "context"

// Gateway turns one utterance's raw audio into a single textual answer.
type Gateway interface {
	TranscribeAndAnswer(ctx context.Context, audio []byte) (string, error)
}

type FileState int

const (
	FileStatePending FileState = iota
	FileStateReady
	FileStateFailed
)

func (s FileState) String() string {
	switch s {
	case FileStatePending:
		return "pending"
	case FileStateReady:
		return "ready"
	case FileStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileHandle is the uploaded audio as known to the remote service.
type FileHandle struct {
	Name     string
	URI      string
	MIMEType string
	State    FileState
}

// Provider is the remote generative service as seen by Relay.
type Provider interface {
	UploadAudio(ctx context.Context, audio []byte, mimeType string) (FileHandle, error)
	GetFile(ctx context.Context, name string) (FileHandle, error)
	GenerateAnswer(ctx context.Context, prompt string, file FileHandle) (string, error)
	DeleteFile(ctx context.Context, name string) error
}

// Answerer answers an already transcribed question.
type Answerer interface {
	AnswerText(ctx context.Context, prompt, transcript string) (string, error)
}
