// Package embedding turns article text into dense vectors: through the
// configured remote model when available, else through a deterministic local
// embedding so ranking keeps working offline.
package embedding

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// LocalModelName is recorded when the deterministic embedding was used.
const LocalModelName = "local-hash"

// DefaultVectorSize is the dimension of the local embedding.
const DefaultVectorSize = 64

// Embedder computes text embeddings.
type Embedder struct {
	client     *openai.Client
	model      string
	vectorSize int
	logger     *slog.Logger
}

// New creates an Embedder. A nil client or empty model keeps everything
// local.
func New(client *openai.Client, model string, vectorSize int, logger *slog.Logger) *Embedder {
	if vectorSize <= 0 {
		vectorSize = DefaultVectorSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		client = nil
	}
	return &Embedder{client: client, model: model, vectorSize: vectorSize, logger: logger}
}

// ModelName reports which model the next embedding will carry.
func (e *Embedder) ModelName() string {
	if e.client != nil {
		return e.model
	}
	return LocalModelName
}

// EmbedText returns the L2-normalized embedding for text. Remote failures
// degrade silently to the local embedding.
func (e *Embedder) EmbedText(ctx context.Context, text string) []float64 {
	if e.client != nil {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.model),
			Input: []string{text},
		})
		if err == nil && len(resp.Data) > 0 {
			vector := make([]float64, len(resp.Data[0].Embedding))
			for i, v := range resp.Data[0].Embedding {
				vector[i] = float64(v)
			}
			return Normalize(vector)
		}
		e.logger.Debug("remote embedding failed, using local embedding", slog.Any("error", err))
	}
	return e.localEmbedding(text)
}

// localEmbedding folds the SHA-256 of the text into vectorSize values in
// [-1, 1], then L2-normalizes.
func (e *Embedder) localEmbedding(text string) []float64 {
	digest := sha256.Sum256([]byte(text))
	vector := make([]float64, e.vectorSize)
	for i := range vector {
		vector[i] = (float64(digest[i%len(digest)])/255.0)*2.0 - 1.0
	}
	return Normalize(vector)
}

// Normalize L2-normalizes a vector; zero vectors pass through.
func Normalize(vector []float64) []float64 {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vector
	}
	normalized := make([]float64, len(vector))
	for i, v := range vector {
		normalized[i] = v / norm
	}
	return normalized
}

// Cosine returns the cosine similarity of two vectors, 0 for mismatched or
// empty inputs.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
