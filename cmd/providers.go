package cmd

import (
	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/providers"
)

// defaultAPIBases gives each OpenAI-compatible provider its native endpoint
// when the operator hasn't set an override in config.
var defaultAPIBases = map[string]string{
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"xai":        "https://api.x.ai/v1",
	"minimax":    "https://api.minimax.chat/v1",
	"cohere":     "https://api.cohere.ai/compatibility/v1",
	"perplexity": "https://api.perplexity.ai",
}

// registerProviders builds and registers every LLM provider that has an API
// key configured. Anthropic and Gemini get dedicated clients; the rest speak
// the OpenAI-compatible chat completions wire format.
func registerProviders(reg *providers.Registry, cfg *config.Config) {
	p := cfg.Providers

	if p.Anthropic.APIKey != "" {
		var opts []providers.AnthropicOption
		if p.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(p.Anthropic.APIBase))
		}
		reg.Register("anthropic", providers.NewAnthropicProvider(p.Anthropic.APIKey, opts...))
	}

	if p.OpenAI.APIKey != "" {
		reg.Register("openai", providers.NewOpenAIProvider("openai", p.OpenAI.APIKey, p.OpenAI.APIBase, "gpt-4o"))
	}
	if p.OpenRouter.APIKey != "" {
		reg.Register("openrouter", providers.NewOpenAIProvider("openrouter", p.OpenRouter.APIKey, firstNonEmpty(p.OpenRouter.APIBase, defaultAPIBases["openrouter"]), "anthropic/claude-sonnet-4-5"))
	}
	if p.Groq.APIKey != "" {
		reg.Register("groq", providers.NewOpenAIProvider("groq", p.Groq.APIKey, firstNonEmpty(p.Groq.APIBase, defaultAPIBases["groq"]), "llama-3.3-70b-versatile"))
	}
	if p.DeepSeek.APIKey != "" {
		reg.Register("deepseek", providers.NewOpenAIProvider("deepseek", p.DeepSeek.APIKey, firstNonEmpty(p.DeepSeek.APIBase, defaultAPIBases["deepseek"]), "deepseek-chat"))
	}
	if p.Mistral.APIKey != "" {
		reg.Register("mistral", providers.NewOpenAIProvider("mistral", p.Mistral.APIKey, firstNonEmpty(p.Mistral.APIBase, defaultAPIBases["mistral"]), "mistral-large-latest"))
	}
	if p.XAI.APIKey != "" {
		reg.Register("xai", providers.NewOpenAIProvider("xai", p.XAI.APIKey, firstNonEmpty(p.XAI.APIBase, defaultAPIBases["xai"]), "grok-2-latest"))
	}
	if p.MiniMax.APIKey != "" {
		reg.Register("minimax", providers.NewOpenAIProvider("minimax", p.MiniMax.APIKey, firstNonEmpty(p.MiniMax.APIBase, defaultAPIBases["minimax"]), "MiniMax-Text-01"))
	}
	if p.Cohere.APIKey != "" {
		reg.Register("cohere", providers.NewOpenAIProvider("cohere", p.Cohere.APIKey, firstNonEmpty(p.Cohere.APIBase, defaultAPIBases["cohere"]), "command-r-plus"))
	}
	if p.Perplexity.APIKey != "" {
		reg.Register("perplexity", providers.NewOpenAIProvider("perplexity", p.Perplexity.APIKey, firstNonEmpty(p.Perplexity.APIBase, defaultAPIBases["perplexity"]), "sonar"))
	}
	if p.Gemini.APIKey != "" {
		reg.Register("gemini", providers.NewOpenAIProvider("gemini", p.Gemini.APIKey, firstNonEmpty(p.Gemini.APIBase, "https://generativelanguage.googleapis.com/v1beta/openai"), "gemini-2.0-flash"))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
