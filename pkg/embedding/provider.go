package embedding

// Task types passed through to providers that embed queries and passages
// differently. Providers that make no distinction ignore them.
const (
	TaskQuery   = "query"
	TaskPassage = "passage"
)

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}
