package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitori/internal/config"
	"github.com/joho/godotenv"
)

const DefaultAnswerPrompt = "You are a knowledgeable assistant. First transcribe the user's audio question. Then answer it factually as if from Wikipedia."

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	GeminiAPIKey               string        `env:"GEMINI_API_KEY,required"`
	GeminiModel                string        `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:":8000"`
	StreamPath                 string        `env:"STREAM_PATH" envDefault:"/ws"`
	StaticDir                  string        `env:"STATIC_DIR" envDefault:"../frontend"`
	AllowedOrigins             []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	AudioMIMEType              string        `env:"AUDIO_MIME_TYPE" envDefault:"audio/wav"`
	AnswerPrompt               string        `env:"ANSWER_PROMPT"`
	GatewayBackend             string        `env:"GATEWAY_BACKEND" envDefault:"gemini"`
	PollInterval               time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	ProcessingTimeout          time.Duration `env:"PROCESSING_TIMEOUT" envDefault:"2m"`
	MaxUtteranceBytes          int           `env:"MAX_UTTERANCE_BYTES" envDefault:"33554432"`
	MaxMessageBytes            int64         `env:"MAX_MESSAGE_BYTES" envDefault:"16777216"`
	WriteTimeout               time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout            time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"long"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
}

// Load reads .env files (when present) without overriding the real environment,
// then parses and validates the configuration.
func Load(dotenvFiles ...string) (*internalconfig.Config, error) {
	if err := loadDotenv(dotenvFiles...); err != nil {
		return nil, err
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if strings.TrimSpace(raw.AnswerPrompt) == "" {
		raw.AnswerPrompt = DefaultAnswerPrompt
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		GeminiAPIKey:               raw.GeminiAPIKey,
		GeminiModel:                raw.GeminiModel,
		ListenAddr:                 raw.ListenAddr,
		StreamPath:                 raw.StreamPath,
		StaticDir:                  raw.StaticDir,
		AllowedOrigins:             trimAll(raw.AllowedOrigins),
		AudioMIMEType:              raw.AudioMIMEType,
		AnswerPrompt:               raw.AnswerPrompt,
		GatewayBackend:             strings.ToLower(strings.TrimSpace(raw.GatewayBackend)),
		PollInterval:               raw.PollInterval,
		ProcessingTimeout:          raw.ProcessingTimeout,
		MaxUtteranceBytes:          raw.MaxUtteranceBytes,
		MaxMessageBytes:            raw.MaxMessageBytes,
		WriteTimeout:               raw.WriteTimeout,
		ShutdownTimeout:            raw.ShutdownTimeout,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("dotenv file not found; using process environment", "file", f)
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
		slog.Info("dotenv file loaded", "file", f)
	}
	return nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
