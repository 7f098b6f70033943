package llm

import "context"

// hostedProvider implements Provider for any hosted endpoint that speaks
// the OpenAI chat/embeddings format. All of the hosted services below
// differ only in base URL and default model.
type hostedProvider struct {
	base openAICompatClient
}

func (p *hostedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *hostedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}

func newHosted(cfg Config, defaultBaseURL, defaultModel string) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &hostedProvider{base: newOpenAICompatClient(cfg)}
}

// NewOpenAI creates a provider for OpenAI.
// API key: set via config or OPENAI_API_KEY at the driver level.
func NewOpenAI(cfg Config) Provider {
	return newHosted(cfg, "https://api.openai.com", "gpt-4o-mini")
}

// NewOpenRouter creates a provider for OpenRouter.
func NewOpenRouter(cfg Config) Provider {
	return newHosted(cfg, "https://openrouter.ai/api", "")
}

// NewGroq creates a provider for Groq's inference API.
func NewGroq(cfg Config) Provider {
	return newHosted(cfg, "https://api.groq.com/openai", "llama-3.3-70b-versatile")
}

// NewXAI creates a provider for xAI (Grok).
func NewXAI(cfg Config) Provider {
	return newHosted(cfg, "https://api.x.ai", "")
}

// NewLMStudio creates a provider for a local LM Studio server.
func NewLMStudio(cfg Config) Provider {
	return newHosted(cfg, "http://localhost:1234", "")
}
