package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

const pineconeHTTPTimeout = 10 * time.Second

type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// indexConn is the slice of *pinecone.IndexConnection used here.
type indexConn interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

// PineconeIndex talks to the data plane of a single serverless index.
type PineconeIndex struct {
	host string
	conn indexConn
}

// NewPineconeIndex connects to the index data plane. When cfg has no host it
// is looked up through the control plane, which also checks the dimension.
// restClient is used for control plane calls; nil builds one from cfg.Timeout.
func NewPineconeIndex(ctx context.Context, cfg utils.PineconeConfig, restClient *http.Client) (*PineconeIndex, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone api key is required", models.ErrConfiguration)
	}
	if restClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = pineconeHTTPTimeout
		}
		restClient = &http.Client{Timeout: timeout}
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       strings.TrimRight(cfg.ControlPlaneURL, "/"),
		RestClient: restClient,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: client: %w", err)
	}

	host := cfg.IndexHost
	if host == "" {
		host, err = describeIndex(ctx, client, cfg.IndexName)
		if err != nil {
			return nil, err
		}
	}
	host = trimScheme(host)

	conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: cfg.Namespace})
	if err != nil {
		return nil, fmt.Errorf("pinecone: connect %s: %w", host, err)
	}
	return &PineconeIndex{host: host, conn: conn}, nil
}

func describeIndex(ctx context.Context, client *pinecone.Client, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: pinecone index name is required", models.ErrConfiguration)
	}

	desc, err := client.DescribeIndex(ctx, name)
	if err != nil {
		return "", fmt.Errorf("pinecone: describe index %s: %w", name, err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("pinecone: index %s has no host", name)
	}
	if desc.Dimension != nil && int(*desc.Dimension) != utils.EmbeddingDimension {
		return "", fmt.Errorf("%w: pinecone index %s has dimension %d, expected %d",
			models.ErrConfiguration, name, *desc.Dimension, utils.EmbeddingDimension)
	}
	return desc.Host, nil
}

func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	resp, err := p.conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone: query: %w", err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, scored := range resp.Matches {
		if scored == nil || scored.Vector == nil {
			continue
		}
		match := Match{ID: scored.Vector.Id, Score: float64(scored.Score)}
		if scored.Vector.Metadata != nil {
			match.Metadata = scored.Vector.Metadata.AsMap()
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (p *PineconeIndex) Upsert(ctx context.Context, vectors []Vector) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}

	batch := make([]*pinecone.Vector, 0, len(vectors))
	for _, v := range vectors {
		values := v.Values
		out := &pinecone.Vector{Id: v.ID, Values: &values}
		if len(v.Metadata) > 0 {
			metadata, err := structpb.NewStruct(v.Metadata)
			if err != nil {
				return 0, fmt.Errorf("pinecone: metadata for %s: %w", v.ID, err)
			}
			out.Metadata = metadata
		}
		batch = append(batch, out)
	}

	count, err := p.conn.UpsertVectors(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("pinecone: upsert: %w", err)
	}
	return int(count), nil
}

func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}

func trimScheme(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	host = strings.TrimPrefix(host, "https://")
	return strings.TrimPrefix(host, "http://")
}
