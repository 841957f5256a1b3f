package transcriber

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/external/gemini"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Gateway, error) {
		c := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[*gemini.Client](i)
		return NewGateway(c, client), nil
	})
}

// NewGateway builds the gateway backend selected by the configuration.
func NewGateway(c *config.Config, client *gemini.Client) transcriber.Gateway {
	if c.GatewayBackend == config.GatewayBackendCloudSpeech {
		slog.Info("using cloud speech gateway", "location", c.GoogleCloudSpeechLocation, "model", c.GoogleCloudSpeechModel, "language", c.TranscribeLanguage)
		return NewCloudSpeechGateway(CloudSpeechConfig{
			ProjectID:         c.GoogleCloudProjectID,
			CredentialsJSON:   c.GoogleCloudCredentialsJSON,
			Language:          c.TranscribeLanguage,
			Location:          c.GoogleCloudSpeechLocation,
			Model:             c.GoogleCloudSpeechModel,
			Prompt:            c.AnswerPrompt,
			ProcessingTimeout: c.ProcessingTimeout,
		}, client)
	}
	slog.Info("using gemini file gateway", "model", c.GeminiModel, "mime_type", c.AudioMIMEType)
	return transcriber.NewRelay(client, transcriber.RelayConfig{
		MIMEType:          c.AudioMIMEType,
		Prompt:            c.AnswerPrompt,
		PollInterval:      c.PollInterval,
		ProcessingTimeout: c.ProcessingTimeout,
	})
}
