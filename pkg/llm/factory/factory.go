package factory

import (
	"fmt"

	"github.com/MKRushil/Pulse/pkg/llm"
	"github.com/MKRushil/Pulse/pkg/llm/ollama"
	"github.com/MKRushil/Pulse/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return openai.NewOpenAIProvider(baseURL, apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
