package llmclient

import "fmt"

// New constructs an LLMClient for the given provider ("openai" or "anthropic").
// An empty provider defaults to "openai".
func New(provider, apiKey, model string, maxTokens int, baseURL string) (LLMClient, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIClient(apiKey, model, maxTokens, baseURL), nil
	case "anthropic":
		return NewAnthropicClient(apiKey, model, maxTokens, baseURL), nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", provider)
	}
}
