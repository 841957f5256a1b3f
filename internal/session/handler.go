package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/google/uuid"
)

const inboundQueueSize = 64

// Connection is one client's bidirectional message stream. ReadMessage is only
// called from a single goroutine; it returns an error wrapping
// ErrConnectionClosed when the client goes away.
type Connection interface {
	ReadMessage() ([]byte, error)
	WriteMessage(ctx context.Context, data []byte) error
	Close() error
}

type HandlerConfig struct {
	MaxUtteranceBytes int
	WriteTimeout      time.Duration
}

// Handler drives every connection's session. It holds no per-connection state
// and is shared by all connections.
type Handler struct {
	gateway           transcriber.Gateway
	maxUtteranceBytes int
	writeTimeout      time.Duration
	newID             func() string
}

func NewHandler(gw transcriber.Gateway, cfg HandlerConfig) *Handler {
	return &Handler{
		gateway:           gw,
		maxUtteranceBytes: cfg.MaxUtteranceBytes,
		writeTimeout:      cfg.WriteTimeout,
		newID:             uuid.NewString,
	}
}

// Serve runs one session until the connection ends or ctx is canceled. It
// closes conn before returning.
func (h *Handler) Serve(ctx context.Context, conn Connection) {
	sess := NewSession(h.newID())
	ctx, cancel := context.WithCancel(ctx)

	frames := make(chan []byte, inboundQueueSize)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		h.readLoop(ctx, cancel, conn, frames, readErr)
	}()

	defer func() {
		cancel()
		if err := conn.Close(); err != nil {
			slog.Debug("connection close returned error", "error", err, "session_id", sess.ID)
		}
		<-readerDone
		sess.Close()
		slog.Info("session closed", "session_id", sess.ID)
	}()
	defer func() {
		if r := recover(); r != nil {
			h.notifyUnexpected(ctx, conn, sess, fmt.Errorf("panic: %v", r))
		}
	}()

	slog.Info("session opened", "session_id", sess.ID)
	for {
		select {
		case raw := <-frames:
			h.handleMessage(ctx, conn, sess, raw)
		case <-ctx.Done():
			select {
			case err := <-readErr:
				h.handleReadError(ctx, conn, sess, err)
			default:
				slog.Info("session canceled by server", "session_id", sess.ID)
			}
			return
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, conn Connection, frames chan<- []byte, readErr chan<- error) {
	defer cancel()
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- raw:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleReadError(ctx context.Context, conn Connection, sess *Session, err error) {
	if errors.Is(err, ErrConnectionClosed) {
		slog.Info("client disconnected", "session_id", sess.ID, "reason", err.Error())
		return
	}
	h.notifyUnexpected(ctx, conn, sess, err)
}

func (h *Handler) handleMessage(ctx context.Context, conn Connection, sess *Session, raw []byte) {
	msg, err := ParseIncoming(raw)
	if err != nil {
		slog.Warn("malformed message", "error", err, "session_id", sess.ID, "frame_bytes", len(raw))
		h.send(ctx, conn, sess, errorMessage(err))
		return
	}

	switch msg.Type {
	case MessageTypeAudioChunk:
		h.appendChunk(ctx, conn, sess, msg)
	case MessageTypeEndOfStream:
		h.completeUtterance(ctx, conn, sess)
	}
}

func (h *Handler) appendChunk(ctx context.Context, conn Connection, sess *Session, msg IncomingMessage) {
	chunk, err := msg.DecodeAudio()
	if err != nil {
		slog.Warn("dropping undecodable audio chunk", "error", err, "session_id", sess.ID)
		h.send(ctx, conn, sess, errorMessage(err))
		return
	}
	if size := sess.Len() + len(chunk); size > h.maxUtteranceBytes {
		err := &UtteranceTooLargeError{Limit: h.maxUtteranceBytes, Size: size}
		slog.Warn("dropping audio chunk over utterance limit", "error", err, "session_id", sess.ID)
		h.send(ctx, conn, sess, errorMessage(err))
		return
	}
	if err := sess.Append(chunk); err != nil {
		slog.Debug("audio chunk after session close", "session_id", sess.ID)
	}
}

func (h *Handler) completeUtterance(ctx context.Context, conn Connection, sess *Session) {
	done := sess.beginUtterance()
	defer done()

	audio := sess.Take()
	slog.Info("utterance received", "session_id", sess.ID, "audio_bytes", len(audio))
	started := time.Now()

	text, err := h.gateway.TranscribeAndAnswer(ctx, audio)
	if ctx.Err() != nil {
		slog.Info("discarding utterance result for closed session", "session_id", sess.ID, "elapsed", time.Since(started))
		return
	}
	if err != nil {
		kind, _ := classifyError(err)
		slog.Warn("utterance failed", "error", err, "kind", kind, "session_id", sess.ID, "elapsed", time.Since(started))
		h.send(ctx, conn, sess, errorMessage(err))
		return
	}
	slog.Info("utterance answered", "session_id", sess.ID, "elapsed", time.Since(started), "answer_chars", len(text))
	h.send(ctx, conn, sess, responseMessage(text))
}

func (h *Handler) send(ctx context.Context, conn Connection, sess *Session, msg OutgoingMessage) {
	if ctx.Err() != nil {
		slog.Debug("skipping reply on closed session", "session_id", sess.ID, "type", msg.Type)
		return
	}
	h.write(ctx, conn, sess, msg)
}

// notifyUnexpected makes one guarded attempt to tell the client about err.
// It runs during teardown, so it does not honour the session's cancellation.
func (h *Handler) notifyUnexpected(ctx context.Context, conn Connection, sess *Session, err error) {
	slog.Error("unexpected session error", "error", err, "session_id", sess.ID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("error notification panicked", "panic", fmt.Sprint(r), "session_id", sess.ID)
		}
	}()
	h.write(context.WithoutCancel(ctx), conn, sess, errorMessage(err))
}

func (h *Handler) write(ctx context.Context, conn Connection, sess *Session, msg OutgoingMessage) {
	data, err := msg.Encode()
	if err != nil {
		slog.Error("failed to encode reply", "error", err, "session_id", sess.ID)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := conn.WriteMessage(writeCtx, data); err != nil {
		slog.Warn("failed to send reply", "error", err, "session_id", sess.ID, "type", msg.Type)
	}
}
