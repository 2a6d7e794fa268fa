package llm

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"

	"github.com/teilomillet/ragingest/config"
)

// generateDirect dispatches the single-provider (non-OpenRouter) Generate
// path. OpenAI and Anthropic go through gollm, matching the way the corpus's
// own contextual-enrichment call builds an LLM; Google goes through the
// genai SDK directly since gollm has no confirmed Google support anywhere in
// the corpus.
func generateDirect(ctx context.Context, cfg *config.Config, prompt, system string) (string, error) {
	if cfg.TextProvider == "google" {
		return generateGoogle(ctx, cfg, prompt, system)
	}
	return generateGollm(ctx, cfg, cfg.TextProvider, cfg.TextModel, prompt, system)
}

// generateGollm builds a gollm.LLM for the given provider/model and issues a
// single Generate call. gollm's Prompt type carries no separate system-role
// field in any call site this module was grounded on, so a system
// instruction is folded into the prompt text as a leading section.
func generateGollm(ctx context.Context, cfg *config.Config, provider, model, prompt, system string) (string, error) {
	llm, err := gollm.NewLLM(
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetAPIKey(cfg.APIKeys[provider]),
		gollm.SetMaxTokens(cfg.MaxOutputTokens),
		gollm.SetMaxRetries(1),
	)
	if err != nil {
		return "", fmt.Errorf("%w: building %s LLM: %v", errProviderTransient, provider, err)
	}

	combined := prompt
	if system != "" {
		combined = system + "\n\n" + prompt
	}

	text, err := llm.Generate(ctx, gollm.NewPrompt(combined))
	if err != nil {
		return "", fmt.Errorf("%w: %s generate failed: %v", errProviderTransient, provider, err)
	}
	return text, nil
}
