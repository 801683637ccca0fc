// Package retrieval holds the in-memory similarity indexes over artist and
// track names. Indexes are built once and never updated.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrEmptyQuery = errors.New("query is empty")

// Document is one indexed text plus the row it came from.
type Document struct {
	Text     string         `json:"page_content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a document with its cosine similarity to the query.
type Match struct {
	Document
	Score float64 `json:"score"`
}

// Index is a brute-force cosine index over unit vectors.
type Index struct {
	name     string
	docs     []Document
	vectors  [][]float64
	embedder Embedder
	cache    *lru.Cache[string, []float64]
}

// BuildIndex embeds every document. cacheSize bounds the query-embedding cache
// (0 disables it).
func BuildIndex(ctx context.Context, name string, embedder Embedder, docs []Document, cacheSize int) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vectors := make([][]float64, 0, len(docs))
	if len(texts) > 0 {
		embedded, err := embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("build %s index: %w", name, err)
		}
		if len(embedded) != len(texts) {
			return nil, fmt.Errorf("build %s index: got %d vectors for %d documents", name, len(embedded), len(texts))
		}
		for _, v := range embedded {
			vectors = append(vectors, normalize(v))
		}
	}

	idx := &Index{
		name:     name,
		docs:     append([]Document(nil), docs...),
		vectors:  vectors,
		embedder: embedder,
	}
	if cacheSize > 0 {
		cache, err := lru.New[string, []float64](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create %s query cache: %w", name, err)
		}
		idx.cache = cache
	}
	return idx, nil
}

func (i *Index) Name() string { return i.name }

func (i *Index) Len() int { return len(i.docs) }

// Search returns up to k documents ordered by descending similarity. It never
// reports "no match": the nearest neighbors are always returned.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 || len(i.docs) == 0 {
		return []Match{}, nil
	}

	qv, err := i.queryVector(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(i.docs))
	for n, v := range i.vectors {
		matches[n] = Match{Document: i.docs[n], Score: dot(qv, v)}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (i *Index) queryVector(ctx context.Context, query string) ([]float64, error) {
	key := strings.ToLower(query)
	if i.cache != nil {
		if v, ok := i.cache.Get(key); ok {
			return v, nil
		}
	}
	vs, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed %s query: %w", i.name, err)
	}
	if len(vs) != 1 {
		return nil, fmt.Errorf("embed %s query: got %d vectors", i.name, len(vs))
	}
	v := normalize(vs[0])
	if i.cache != nil {
		i.cache.Add(key, v)
	}
	return v, nil
}

func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	out := make([]float64, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for n, x := range v {
		out[n] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}
