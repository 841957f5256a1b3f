package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID         string
	CredentialsJSON   string
	Language          string
	Location          string
	Model             string
	Prompt            string
	ProcessingTimeout time.Duration
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// CloudSpeechGateway transcribes with Speech-to-Text and answers the transcript
// with a text model.
type CloudSpeechGateway struct {
	recognizer        string
	language          string
	model             string
	prompt            string
	processingTimeout time.Duration
	answerer          transcriber.Answerer
	connect           func(ctx context.Context) (recognizeFunc, func() error, error)
}

func NewCloudSpeechGateway(cfg CloudSpeechConfig, answerer transcriber.Answerer) *CloudSpeechGateway {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}
	g := &CloudSpeechGateway{
		recognizer:        fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:          cfg.Language,
		model:             strings.TrimSpace(cfg.Model),
		prompt:            cfg.Prompt,
		processingTimeout: cfg.ProcessingTimeout,
		answerer:          answerer,
	}
	g.connect = func(ctx context.Context) (recognizeFunc, func() error, error) {
		return dialSpeech(ctx, cfg.CredentialsJSON, location)
	}
	return g
}

func dialSpeech(ctx context.Context, credentialsJSON, location string) (recognizeFunc, func() error, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	recognize := func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}
	return recognize, client.Close, nil
}

func (g *CloudSpeechGateway) TranscribeAndAnswer(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", transcriber.ErrEmptyAudio
	}

	transcript, err := g.transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	slog.Debug("cloud speech transcript received", "chars", len(transcript))

	answer, err := g.answerer.AnswerText(ctx, g.prompt, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transcriber.AnswerGenerationError{Err: err}
	}
	return answer, nil
}

func (g *CloudSpeechGateway) transcribe(ctx context.Context, audio []byte) (string, error) {
	recCtx, cancel := context.WithTimeout(ctx, g.processingTimeout)
	defer cancel()

	recognize, closeFn, err := g.connect(recCtx)
	if err != nil {
		return "", &transcriber.UploadError{Err: err}
	}
	defer func() {
		if err := closeFn(); err != nil {
			slog.Warn("failed to close cloud speech client", "error", err)
		}
	}()

	resp, err := recognize(recCtx, &speechpb.RecognizeRequest{
		Recognizer: g.recognizer,
		Config: &speechpb.RecognitionConfig{
			Model:         g.model,
			LanguageCodes: []string{g.language},
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Features: &speechpb.RecognitionFeatures{EnableAutomaticPunctuation: true},
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: audio},
	})
	if err != nil {
		return "", g.classifyRecognizeError(ctx, recCtx, err)
	}

	transcript := joinTranscript(resp.GetResults())
	if transcript == "" {
		return "", &transcriber.ProcessingFailedError{Reason: "no speech recognized"}
	}
	return transcript, nil
}

func (g *CloudSpeechGateway) classifyRecognizeError(ctx, recCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(recCtx.Err(), context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded {
		return &transcriber.TimeoutError{Waited: g.processingTimeout}
	}
	if status.Code(err) == codes.InvalidArgument {
		return &transcriber.ProcessingFailedError{Reason: "audio rejected", Err: err}
	}
	return &transcriber.UploadError{Err: err}
}

func joinTranscript(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		if t := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
