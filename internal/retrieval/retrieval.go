// Package retrieval finds business-document passages relevant to a user
// message. Any failure is reported as models.ErrRetrievalUnavailable.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/moibraahim/gymnation-task/internal/models"
)

const DefaultTopK = 3

type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

type Options struct {
	MinScore    float64
	DefaultTopK int
}

type Client struct {
	embedder Embedder
	index    VectorIndex
	cache    EmbeddingCache
	opts     Options
	logger   *zap.Logger

	inflight singleflight.Group
}

// NewClient wires an embedder and index. cache may be nil.
func NewClient(embedder Embedder, index VectorIndex, cache EmbeddingCache, opts Options, logger *zap.Logger) *Client {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{embedder: embedder, index: index, cache: cache, opts: opts, logger: logger}
}

// Search returns up to k passages scoring at least the relevance floor,
// highest score first.
func (c *Client) Search(ctx context.Context, query string, k int) ([]models.RetrievedPassage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.RetrievedPassage{}, nil
	}
	if k <= 0 {
		k = c.opts.DefaultTopK
	}

	vector, err := c.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", models.ErrRetrievalUnavailable, err)
	}

	matches, err := c.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRetrievalUnavailable, err)
	}

	passages := make([]models.RetrievedPassage, 0, len(matches))
	for _, m := range matches {
		if m.Score < c.opts.MinScore {
			continue
		}
		text := metadataString(m.Metadata, "text")
		if text == "" {
			continue
		}
		passages = append(passages, models.RetrievedPassage{
			ID:     m.ID,
			Text:   text,
			Title:  metadataString(m.Metadata, "title"),
			Source: metadataString(m.Metadata, "source"),
			Score:  m.Score,
		})
	}

	sort.SliceStable(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}

// embed consults the cache and collapses concurrent identical queries into
// one embedding call.
func (c *Client) embed(ctx context.Context, query string) ([]float32, error) {
	key := embeddingCacheKey(c.embedder.Model(), query)

	if c.cache != nil {
		vector, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("retrieval: embedding cache read failed", zap.Error(err))
		} else if ok {
			return vector, nil
		}
	}

	result, err, _ := c.inflight.Do(key, func() (any, error) {
		vector, err := c.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, key, vector); err != nil {
				c.logger.Warn("retrieval: embedding cache write failed", zap.Error(err))
			}
		}
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]float32), nil
}

func metadataString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	switch v := metadata[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
