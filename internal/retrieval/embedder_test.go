package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/moibraahim/gymnation-task/internal/utils"
)

func TestOpenAIEmbedderRequestsDimensions(t *testing.T) {
	var request map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer server.Close()

	embedder, err := NewOpenAIEmbedder(utils.EmbeddingConfig{APIKey: "sk-test", BaseURL: server.URL + "/"}, 2)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != float32(0.1) || vectors[1][0] != float32(0.4) {
		t.Fatalf("vectors not ordered by index: %v", vectors)
	}
	if request["model"] != "text-embedding-3-small" || request["dimensions"] != float64(2) {
		t.Fatalf("unexpected request %v", request)
	}
}
