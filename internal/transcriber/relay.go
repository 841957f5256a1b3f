package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const fileCleanupTimeout = 10 * time.Second

type RelayConfig struct {
	MIMEType          string
	Prompt            string
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
}

// Relay uploads audio to a Provider, waits for it to become ready and asks for an answer.
type Relay struct {
	provider          Provider
	mimeType          string
	prompt            string
	pollInterval      time.Duration
	processingTimeout time.Duration
}

func NewRelay(provider Provider, cfg RelayConfig) *Relay {
	return &Relay{
		provider:          provider,
		mimeType:          cfg.MIMEType,
		prompt:            cfg.Prompt,
		pollInterval:      cfg.PollInterval,
		processingTimeout: cfg.ProcessingTimeout,
	}
}

func (r *Relay) TranscribeAndAnswer(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	file, err := r.provider.UploadAudio(ctx, audio, r.mimeType)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &UploadError{Err: err}
	}
	slog.Debug("audio uploaded", "file", file.Name, "state", file.State.String(), "audio_bytes", len(audio))
	defer r.cleanup(ctx, file.Name)

	file, err = r.waitUntilReady(ctx, file)
	if err != nil {
		return "", err
	}

	text, err := r.provider.GenerateAnswer(ctx, r.prompt, file)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &AnswerGenerationError{Err: err}
	}
	return text, nil
}

func (r *Relay) waitUntilReady(ctx context.Context, file FileHandle) (FileHandle, error) {
	if file.State == FileStatePending {
		waitCtx, cancel := context.WithTimeout(ctx, r.processingTimeout)
		defer cancel()
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		polls := 0
		for file.State == FileStatePending {
			select {
			case <-waitCtx.Done():
				return file, r.waitError(ctx, file)
			case <-ticker.C:
			}
			polls++
			next, err := r.provider.GetFile(waitCtx, file.Name)
			if err != nil {
				if waitCtx.Err() != nil {
					return file, r.waitError(ctx, file)
				}
				return file, &ProcessingFailedError{File: file.Name, Reason: "status lookup failed", Err: err}
			}
			file = next
		}
		slog.Debug("audio processing finished", "file", file.Name, "state", file.State.String(), "polls", polls)
	}

	if file.State != FileStateReady {
		return file, &ProcessingFailedError{File: file.Name, Reason: "remote state " + file.State.String()}
	}
	return file, nil
}

func (r *Relay) waitError(ctx context.Context, file FileHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return &TimeoutError{File: file.Name, Waited: r.processingTimeout}
}

func (r *Relay) cleanup(ctx context.Context, name string) {
	if name == "" {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fileCleanupTimeout)
	defer cancel()
	if err := r.provider.DeleteFile(cleanupCtx, name); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("failed to delete uploaded audio", "error", err, "file", name)
	}
}
