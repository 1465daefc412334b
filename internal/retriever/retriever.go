// Package retriever performs semantic similarity search over previously
// ingested content, scoped to a single companion. Retrieval is best-effort
// enrichment: every failure path degrades to an empty result rather than
// failing the chat turn.
package retriever

import (
	"context"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
	"github.com/Patelhetu-177/AvatarAI/pkg/metrics"
)

// DefaultK is how many passages a search returns by default.
const DefaultK = 3

// Result is one retrieved passage with its similarity score, higher is
// closer.
type Result struct {
	Content string
	Score   float32
}

// VectorIndex is the similarity-search backend. An empty entityScopeID
// means an unfiltered query across all entities.
type VectorIndex interface {
	QuerySimilar(ctx context.Context, vector []float32, k int, entityScopeID string) ([]Result, error)
}

// EmbeddingProvider turns a text context into an embedding vector.
// Satisfied by embedding_cache.Cache.
type EmbeddingProvider interface {
	Embed(ctx context.Context, entityFileID, text string) ([]float32, error)
}

// Retriever embeds a text context and queries the vector index for the most
// similar prior content.
type Retriever struct {
	index      VectorIndex
	embeddings EmbeddingProvider
	k          int
	log        logger.Logger
	metrics    *metrics.Metrics
}

// Config holds configuration for the retriever.
type Config struct {
	Index      VectorIndex
	Embeddings EmbeddingProvider
	Logger     logger.Logger

	// K bounds the result count when the caller passes no limit.
	// Defaults to DefaultK.
	K int
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// New creates a new retriever with the given configuration.
func New(cfg Config) *Retriever {
	if cfg.Index == nil {
		panic("vector index cannot be nil")
	}
	if cfg.Embeddings == nil {
		panic("embedding provider cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.K <= 0 {
		cfg.K = DefaultK
	}

	return &Retriever{
		index:      cfg.Index,
		embeddings: cfg.Embeddings,
		k:          cfg.K,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Search returns up to k passages similar to contextText, scoped to
// entityScopeID so one companion's memories never leak into another's
// context. Empty or invalid inputs, embedding failures, and backend
// failures all yield an empty result; the filtered query falls back to an
// unfiltered one before giving up.
func (r *Retriever) Search(ctx context.Context, contextText, entityScopeID string, k int) []Result {
	if contextText == "" {
		r.log.Warn("Skipping vector search: empty context text")
		return nil
	}
	if entityScopeID == "" {
		r.log.Warn("Skipping vector search: empty entity scope")
		return nil
	}
	if k <= 0 {
		k = r.k
	}

	vector, err := r.embeddings.Embed(ctx, entityScopeID, contextText)
	if err != nil {
		r.log.Warn("Failed to embed search context", logger.ErrorField(err))
		return nil
	}

	results, err := r.index.QuerySimilar(ctx, vector, k, entityScopeID)
	if err != nil {
		r.log.Warn("Filtered vector search failed, trying without filter",
			logger.StringField("entity_scope", entityScopeID),
			logger.ErrorField(err))
		if r.metrics != nil {
			r.metrics.RetrievalFallbacks.Inc()
		}

		results, err = r.index.QuerySimilar(ctx, vector, k, "")
		if err != nil {
			r.log.Error("Unfiltered vector search failed", logger.ErrorField(err))
			return nil
		}
	}

	if len(results) == 0 && r.metrics != nil {
		r.metrics.RetrievalEmptyResults.Inc()
	}

	r.log.Debug("Vector search completed",
		logger.StringField("entity_scope", entityScopeID),
		logger.IntField("results_count", len(results)))
	return results
}
