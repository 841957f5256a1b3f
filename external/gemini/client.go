package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const uploadDisplayName = "utterance"

var errEmptyResponse = errors.New("empty response from gemini")

type Config struct {
	APIKey string
	Model  string
}

// Client talks to the Gemini File API and generation endpoint. It is safe for
// concurrent use by every session.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

var (
	_ transcriber.Provider = (*Client)(nil)
	_ transcriber.Answerer = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	slog.Info("gemini client created", "model", cfg.Model)
	return &Client{
		client: c,
		model:  c.GenerativeModel(cfg.Model),
	}, nil
}

func (c *Client) UploadAudio(ctx context.Context, audio []byte, mimeType string) (transcriber.FileHandle, error) {
	f, err := c.client.UploadFile(ctx, "", bytes.NewReader(audio), &genai.UploadFileOptions{
		DisplayName: uploadDisplayName,
		MIMEType:    mimeType,
	})
	if err != nil {
		return transcriber.FileHandle{}, err
	}
	return toFileHandle(f), nil
}

func (c *Client) GetFile(ctx context.Context, name string) (transcriber.FileHandle, error) {
	f, err := c.client.GetFile(ctx, name)
	if err != nil {
		return transcriber.FileHandle{}, err
	}
	return toFileHandle(f), nil
}

func (c *Client) GenerateAnswer(ctx context.Context, prompt string, file transcriber.FileHandle) (string, error) {
	resp, err := c.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.FileData{URI: file.URI, MIMEType: file.MIMEType},
	)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (c *Client) AnswerText(ctx context.Context, prompt, transcript string) (string, error) {
	resp, err := c.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Text("<transcript>\n"+transcript+"\n</transcript>"),
	)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (c *Client) DeleteFile(ctx context.Context, name string) error {
	return c.client.DeleteFile(ctx, name)
}

func (c *Client) Close() error {
	return c.client.Close()
}

func toFileHandle(f *genai.File) transcriber.FileHandle {
	return transcriber.FileHandle{
		Name:     f.Name,
		URI:      f.URI,
		MIMEType: f.MIMEType,
		State:    toFileState(f.State),
	}
}

func toFileState(s genai.FileState) transcriber.FileState {
	switch s {
	case genai.FileStateProcessing:
		return transcriber.FileStatePending
	case genai.FileStateFailed:
		return transcriber.FileStateFailed
	default:
		// Only PROCESSING holds generation back; anything else is usable.
		return transcriber.FileStateReady
	}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errEmptyResponse
	}
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("prompt blocked: %v", resp.PromptFeedback.BlockReason)
		}
		return "", errEmptyResponse
	}
	return text.String(), nil
}
