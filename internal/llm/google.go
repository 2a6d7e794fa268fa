package llm

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/teilomillet/ragingest/config"
	"github.com/teilomillet/ragingest/internal/apperr"
)

// googleClient builds a genai client for the current call. The SDK reads its
// API key from the process environment, so the configured key is exported
// before construction; Load already validated that an API key is present
// for any provider actually selected.
func googleClient(ctx context.Context, cfg *config.Config) (*genai.Client, error) {
	key := cfg.APIKeys["google"]
	if key == "" {
		return nil, fmt.Errorf("%w: missing google API key", errProviderTransient)
	}
	os.Setenv("GOOGLE_API_KEY", key)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: building google client: %v", errProviderTransient, err)
	}
	return client, nil
}

func embedGoogle(ctx context.Context, cfg *config.Config, text string) (EmbedResult, error) {
	client, err := googleClient(ctx, cfg)
	if err != nil {
		return EmbedResult{}, err
	}

	model := cfg.EffectiveEmbeddingModel()
	resp, err := client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("%w: google embed request failed: %v", errProviderTransient, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return EmbedResult{}, errZeroVector
	}
	return EmbedResult{Vector: resp.Embeddings[0].Values}, nil
}

func generateGoogle(ctx context.Context, cfg *config.Config, prompt, system string) (string, error) {
	client, err := googleClient(ctx, cfg)
	if err != nil {
		return "", err
	}

	contentConfig := &genai.GenerateContentConfig{}
	if system != "" {
		contentConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, cfg.TextModel, genai.Text(prompt), contentConfig)
	if err != nil {
		return "", fmt.Errorf("%w: google generate request failed: %v", errProviderTransient, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: google returned empty generation", apperr.ErrNoTextExtracted)
	}
	return text, nil
}
