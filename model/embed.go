package model

import (
	"fmt"
	"log/slog"
	"os"
)

// NewEmbedderFromEnv picks the embedding provider. The OpenAI client is
// the default; EMBEDDING_PROVIDER=ollama switches to a local Ollama
// instance.
func NewEmbedderFromEnv() (Embedder, error) {
	switch os.Getenv("EMBEDDING_PROVIDER") {
	case "ollama":
		url := os.Getenv("OLLAMA_EMBEDDING_URL")
		m := os.Getenv("OLLAMA_EMBEDDING_MODEL")
		if url == "" || m == "" {
			return nil, fmt.Errorf("OLLAMA_EMBEDDING_URL and OLLAMA_EMBEDDING_MODEL are required for the ollama provider")
		}
		slog.Info("using ollama embeddings", "model", m)
		return NewOllamaEmbedder(url, m), nil
	default:
		client, err := NewOpenAIClient(OpenAIConfigFromEnv())
		if err != nil {
			return nil, err
		}
		slog.Info("using openai embeddings", "model", string(OpenAIConfigFromEnv().EmbeddingModel))
		return client, nil
	}
}
