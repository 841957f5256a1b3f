package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/transcriber"
)

const (
	MessageTypeAudioChunk  = "audio_chunk"
	MessageTypeEndOfStream = "end_of_stream"
	MessageTypeResponse    = "response"
	MessageTypeError       = "error"
)

const (
	messageMalformedPrefix     = "malformed message: "
	messageInvalidAudioChunk   = "invalid audio chunk: audio must be base64 encoded"
	messageUtteranceTooLarge   = "audio exceeds the %d byte limit"
	messageEmptyAudio          = "no audio was received"
	messageUploadFailed        = "audio upload failed"
	messageProcessingFailed    = "Audio processing failed"
	messageProcessingTimedOut  = "audio processing timed out"
	messageAnswerFailed        = "answer generation failed"
	messageUnexpectedServerErr = "unexpected server error"
)

type IncomingMessage struct {
	Type  string
	Audio string
}

type OutgoingMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type incomingFrame struct {
	Type  *string `json:"type"`
	Audio *string `json:"audio"`
}

func ParseIncoming(raw []byte) (IncomingMessage, error) {
	var f incomingFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return IncomingMessage{}, &MalformedInputError{Reason: "invalid JSON", Err: err}
	}
	if f.Type == nil || *f.Type == "" {
		return IncomingMessage{}, &MalformedInputError{Reason: "missing type field"}
	}
	switch *f.Type {
	case MessageTypeAudioChunk:
		if f.Audio == nil {
			return IncomingMessage{}, &MalformedInputError{Reason: "audio_chunk without audio field"}
		}
		return IncomingMessage{Type: MessageTypeAudioChunk, Audio: *f.Audio}, nil
	case MessageTypeEndOfStream:
		return IncomingMessage{Type: MessageTypeEndOfStream}, nil
	default:
		return IncomingMessage{}, &MalformedInputError{Reason: fmt.Sprintf("unknown message type %q", *f.Type)}
	}
}

func (m IncomingMessage) DecodeAudio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(m.Audio)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return b, nil
}

func (m OutgoingMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func responseMessage(text string) OutgoingMessage {
	return OutgoingMessage{Type: MessageTypeResponse, Text: text}
}

func errorMessage(err error) OutgoingMessage {
	return OutgoingMessage{Type: MessageTypeError, Text: errorText(err)}
}

func errorText(err error) string {
	_, text := classifyError(err)
	return text
}

// classifyError maps an error to a log-friendly kind and the text shown to the
// client. Causes are logged, never sent.
func classifyError(err error) (kind, text string) {
	var (
		malformed  *MalformedInputError
		decode     *DecodeError
		tooLarge   *UtteranceTooLargeError
		upload     *transcriber.UploadError
		processing *transcriber.ProcessingFailedError
		timeout    *transcriber.TimeoutError
		answer     *transcriber.AnswerGenerationError
	)
	switch {
	case errors.As(err, &malformed):
		return "malformed_input", messageMalformedPrefix + malformed.Reason
	case errors.As(err, &decode):
		return "decode", messageInvalidAudioChunk
	case errors.As(err, &tooLarge):
		return "utterance_too_large", fmt.Sprintf(messageUtteranceTooLarge, tooLarge.Limit)
	case errors.Is(err, transcriber.ErrEmptyAudio):
		return "empty_audio", messageEmptyAudio
	case errors.As(err, &upload):
		return "upload", messageUploadFailed
	case errors.As(err, &processing):
		return "processing_failed", messageProcessingFailed
	case errors.As(err, &timeout):
		return "timeout", messageProcessingTimedOut
	case errors.As(err, &answer):
		return "answer_generation", messageAnswerFailed
	default:
		return "unexpected", messageUnexpectedServerErr
	}
}
