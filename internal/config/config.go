package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	GatewayBackendGemini      = "gemini"
	GatewayBackendCloudSpeech = "cloudspeech"

	minMessageBytes = 1024
)

type Config struct {
	Env                        string
	GeminiAPIKey               string
	GeminiModel                string
	ListenAddr                 string
	StreamPath                 string
	StaticDir                  string
	AllowedOrigins             []string
	AudioMIMEType              string
	AnswerPrompt               string
	GatewayBackend             string
	PollInterval               time.Duration
	ProcessingTimeout          time.Duration
	MaxUtteranceBytes          int
	MaxMessageBytes            int64
	WriteTimeout               time.Duration
	ShutdownTimeout            time.Duration
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscribeLanguage         string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if strings.TrimSpace(req.value) == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if !strings.HasPrefix(c.StreamPath, "/") {
		return fmt.Errorf("STREAM_PATH must start with /, got %q", c.StreamPath)
	}
	switch c.GatewayBackend {
	case GatewayBackendGemini:
	case GatewayBackendCloudSpeech:
		if c.GoogleCloudProjectID == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID is required when GATEWAY_BACKEND=%s", GatewayBackendCloudSpeech)
		}
		if c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when GATEWAY_BACKEND=%s", GatewayBackendCloudSpeech)
		}
	default:
		return fmt.Errorf("GATEWAY_BACKEND must be %q or %q, got %q", GatewayBackendGemini, GatewayBackendCloudSpeech, c.GatewayBackend)
	}
	for _, d := range c.positiveDurationChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if c.MaxUtteranceBytes <= 0 {
		return fmt.Errorf("MAX_UTTERANCE_BYTES must be positive, got %d", c.MaxUtteranceBytes)
	}
	if c.MaxMessageBytes < minMessageBytes {
		return fmt.Errorf("MAX_MESSAGE_BYTES must be at least %d, got %d", minMessageBytes, c.MaxMessageBytes)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "GEMINI_API_KEY", value: c.GeminiAPIKey},
		{name: "GEMINI_MODEL", value: c.GeminiModel},
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "AUDIO_MIME_TYPE", value: c.AudioMIMEType},
		{name: "ANSWER_PROMPT", value: c.AnswerPrompt},
	}
}

type durationField struct {
	name  string
	value time.Duration
}

func (c *Config) positiveDurationChecks() []durationField {
	return []durationField{
		{name: "POLL_INTERVAL", value: c.PollInterval},
		{name: "PROCESSING_TIMEOUT", value: c.ProcessingTimeout},
		{name: "WRITE_TIMEOUT", value: c.WriteTimeout},
		{name: "SHUTDOWN_TIMEOUT", value: c.ShutdownTimeout},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AllowsAnyOrigin reports whether the stream endpoint accepts every Origin header.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}
