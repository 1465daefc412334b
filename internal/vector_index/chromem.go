// Package vector_index adapts chromem-go, an embedded pure-Go vector
// database, to the retriever's similarity-search interface. The
// document-ingestion pipeline owns Upsert; the retriever only queries.
package vector_index

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Patelhetu-177/AvatarAI/internal/retriever"
)

const (
	collectionName = "documents"

	// fileNameKey is the metadata key carrying the owning entity's file
	// scope, mirrored from the ingestion side.
	fileNameKey = "fileName"
)

// ChromemIndex stores document embeddings in a single chromem collection
// and filters scoped queries on the fileName metadata field.
type ChromemIndex struct {
	db  *chromem.DB
	col *chromem.Collection
	mu  sync.RWMutex
}

// Document is one ingested chunk with its precomputed embedding.
type Document struct {
	ID        string
	Content   string
	FileName  string
	Embedding []float32
}

// NewChromemIndex creates an in-memory index.
func NewChromemIndex() (*ChromemIndex, error) {
	return newIndex(chromem.NewDB())
}

// NewPersistentChromemIndex creates an index persisted under path.
func NewPersistentChromemIndex(path string) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return newIndex(db)
}

func newIndex(db *chromem.DB) (*ChromemIndex, error) {
	// Embeddings are always supplied by the caller, so no embedding
	// function is registered on the collection.
	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector collection: %w", err)
	}
	return &ChromemIndex{db: db, col: col}, nil
}

// Upsert adds document chunks to the index.
func (x *ChromemIndex) Upsert(ctx context.Context, docs []Document) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, doc := range docs {
		err := x.col.AddDocument(ctx, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Embedding,
			Metadata:  map[string]string{fileNameKey: doc.FileName},
		})
		if err != nil {
			return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Count reports how many documents the index holds.
func (x *ChromemIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.col.Count()
}

// QuerySimilar returns up to k passages nearest to vector, filtered to the
// given entity scope when entityScopeID is non-empty. Malformed result rows
// are skipped rather than surfaced.
func (x *ChromemIndex) QuerySimilar(ctx context.Context, vector []float32, k int, entityScopeID string) ([]retriever.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	// chromem rejects nResults larger than the collection size.
	if count := x.col.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	var where map[string]string
	if entityScopeID != "" {
		where = map[string]string{fileNameKey: entityScopeID}
	}

	// chromem also rejects nResults larger than the number of documents
	// matching the filter, so shrink k until the query fits. Running out
	// of k means no documents match the scope at all.
	var rows []chromem.Result
	var err error
	for ; k >= 1; k-- {
		rows, err = x.col.QueryEmbedding(ctx, vector, k, where, nil)
		if err == nil {
			break
		}
		if !isInsufficientDocsError(err) {
			return nil, fmt.Errorf("vector query failed: %w", err)
		}
		if k == 1 {
			return nil, nil
		}
	}

	results := make([]retriever.Result, 0, len(rows))
	for _, row := range rows {
		if row.Content == "" {
			continue
		}
		results = append(results, retriever.Result{
			Content: row.Content,
			Score:   row.Similarity,
		})
	}
	return results, nil
}

// isInsufficientDocsError matches chromem's complaint when nResults exceeds
// the number of documents available to the query.
func isInsufficientDocsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nResults")
}
