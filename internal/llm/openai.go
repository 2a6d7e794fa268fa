package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teilomillet/ragingest/config"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// dimensionAwareModels only honor an explicit "dimensions" request field;
// older embedding models reject the parameter outright.
var dimensionAwareModels = map[string]bool{
	"text-embedding-3-small": true,
	"text-embedding-3-large": true,
}

type openAIEmbedRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
}

// embedOpenAI calls OpenAI's /embeddings endpoint directly over HTTP, the way
// the pack's own provider clients talk to OpenAI-compatible APIs.
func embedOpenAI(ctx context.Context, cfg *config.Config, text string) (EmbedResult, error) {
	model := cfg.EffectiveEmbeddingModel()
	reqBody := openAIEmbedRequest{Input: text, Model: model}
	if dimensionAwareModels[model] {
		if dim := cfg.EffectiveEmbeddingDimension(); dim > 0 {
			reqBody.Dimensions = dim
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("embed: marshal request: %w", err)
	}

	base := cfg.BaseURLs["openai"]
	if base == "" {
		base = defaultOpenAIBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return EmbedResult{}, fmt.Errorf("embed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKeys["openai"])

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("%w: openai embed request failed: %v", errProviderTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("embed: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return EmbedResult{}, classifyHTTPError("openai", resp, body)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return EmbedResult{}, fmt.Errorf("embed: decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return EmbedResult{}, errZeroVector
	}

	return EmbedResult{Vector: parsed.Data[0].Embedding, PromptTokens: parsed.Usage.PromptTokens}, nil
}
