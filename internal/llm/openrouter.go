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

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// openRouterMessage mirrors the OpenAI-compatible chat message shape
// OpenRouter accepts, with Content either a plain string or a slice of
// contentBlock for providers (Claude) that support cache_control markers.
type openRouterMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type openRouterRequest struct {
	Model    string               `json:"model"`
	Messages []openRouterMessage  `json:"messages"`
	Usage    *openRouterUsageOpts `json:"usage,omitempty"`
}

type openRouterUsageOpts struct {
	Include bool `json:"include"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		CacheDiscount       int `json:"cache_discount"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
}

// generateOpenRouter dispatches an OpenRouter completion, choosing the
// caching strategy per the target model's vendor family: Claude models get
// an explicit cache_control-marked document block, Gemini models get a
// deterministic single-string prompt (Gemini 2.5 caches its repeated prefix
// implicitly), and anything else gets a plain single-message request.
func generateOpenRouter(ctx context.Context, cfg *config.Config, prompt, system string, opts GenerateOptions) (string, error) {
	model := cfg.TextModel
	document, rest, hasDoc := detectCacheDocument(prompt, opts)

	var messages []openRouterMessage
	switch {
	case hasDoc && isClaudeModel(model):
		messages = claudeCachedMessages(system, document, rest)
	case hasDoc && isGeminiModel(model):
		messages = geminiDeterministicMessages(system, document, rest)
	default:
		messages = plainMessages(system, prompt)
	}

	reqBody := openRouterRequest{
		Model:    model,
		Messages: messages,
		Usage:    &openRouterUsageOpts{Include: true},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("generate: marshal openrouter request: %w", err)
	}

	base := cfg.BaseURLs["openrouter"]
	if base == "" {
		base = defaultOpenRouterBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generate: build openrouter request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKeys["openrouter"])

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openrouter request failed: %v", errProviderTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("generate: read openrouter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError("openrouter", resp, body)
	}

	var parsed openRouterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("generate: decode openrouter response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// claudeCachedMessages puts the document in its own cache_control-marked
// content block, per Anthropic's ephemeral-cache-block contract as passed
// through by OpenRouter: inside the system message after the system text
// when a system prompt is given, otherwise as the first block of the user
// message ahead of the per-chunk instructions. Only the invariant document
// block carries the cache marker.
func claudeCachedMessages(system, document, rest string) []openRouterMessage {
	docBlock := contentBlock{Type: "text", Text: fmt.Sprintf("<document>\n%s\n</document>", document), CacheControl: &cacheControl{Type: "ephemeral"}}
	if system == "" {
		return []openRouterMessage{
			{Role: "user", Content: []contentBlock{docBlock, {Type: "text", Text: rest}}},
		}
	}
	systemBlocks := []contentBlock{
		{Type: "text", Text: system},
		docBlock,
	}
	return []openRouterMessage{
		{Role: "system", Content: systemBlocks},
		{Role: "user", Content: rest},
	}
}

// geminiDeterministicMessages folds the system prompt, the document and the
// per-chunk question, in that order, into one user message string. No
// cache_control directive exists for this path: Gemini 2.5 caches the
// repeated prefix implicitly, and older Gemini models receive the same
// prompt without caching.
func geminiDeterministicMessages(system, document, rest string) []openRouterMessage {
	prompt := fmt.Sprintf("<document>\n%s\n</document>\n\n%s", document, rest)
	if system != "" {
		prompt = system + "\n\n" + prompt
	}
	return []openRouterMessage{{Role: "user", Content: prompt}}
}

func plainMessages(system, prompt string) []openRouterMessage {
	var messages []openRouterMessage
	if system != "" {
		messages = append(messages, openRouterMessage{Role: "system", Content: system})
	}
	messages = append(messages, openRouterMessage{Role: "user", Content: prompt})
	return messages
}
