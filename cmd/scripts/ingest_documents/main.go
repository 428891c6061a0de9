package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/moibraahim/gymnation-task/internal/retrieval"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

const embedBatchSize = 64

var idUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func main() {
	_ = godotenv.Load()
	cfg := utils.FromEnv()

	title := flag.String("title", "", "title prefix stored with every chunk (default: file name)")
	chunkSize := flag.Int("chunk-size", retrieval.DefaultChunkSize, "approximate characters per chunk")
	dryRun := flag.Bool("dry-run", false, "chunk and print without embedding or uploading")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var (
		embedder *retrieval.OpenAIEmbedder
		index    *retrieval.PineconeIndex
	)
	if !*dryRun {
		var err error
		embedder, err = retrieval.NewOpenAIEmbedder(cfg.Embedding, cfg.Pinecone.Dimension)
		if err != nil {
			log.Fatalf("embedder: %v", err)
		}
		index, err = retrieval.NewPineconeIndex(ctx, cfg.Pinecone, nil)
		if err != nil {
			log.Fatalf("pinecone: %v", err)
		}
		defer index.Close()
	}

	total := 0
	for _, path := range flag.Args() {
		n, err := ingest(ctx, path, *title, *chunkSize, embedder, index)
		if err != nil {
			log.Fatalf("ingest %s: %v", path, err)
		}
		total += n
	}

	fmt.Printf("uploaded %d chunks to %s\n", total, cfg.Pinecone.IndexName)
}

func ingest(ctx context.Context, path, title string, chunkSize int, embedder *retrieval.OpenAIEmbedder, index *retrieval.PineconeIndex) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	source := filepath.Base(path)
	if title == "" {
		title = strings.TrimSuffix(source, filepath.Ext(source))
	}
	prefix := strings.Trim(idUnsafe.ReplaceAllString(strings.ToLower(title), "_"), "_")

	chunks := retrieval.ChunkText(retrieval.DocumentText(source, data), chunkSize)
	fmt.Printf("%s: %d chunks\n", source, len(chunks))
	if embedder == nil {
		for i, chunk := range chunks {
			fmt.Printf("--- %s_%d\n%s\n", prefix, i, chunk)
		}
		return 0, nil
	}

	uploaded := 0
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		embeddings, err := embedder.EmbedBatch(ctx, chunks[start:end])
		if err != nil {
			return uploaded, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}

		vectors := make([]retrieval.Vector, 0, end-start)
		for i, values := range embeddings {
			n := start + i
			vectors = append(vectors, retrieval.Vector{
				ID:     fmt.Sprintf("%s_%d", prefix, n),
				Values: values,
				Metadata: map[string]any{
					"text":        chunks[n],
					"source":      source,
					"title":       fmt.Sprintf("%s - Part %d", title, n+1),
					"chunk_index": n,
				},
			})
		}

		count, err := index.Upsert(ctx, vectors)
		if err != nil {
			return uploaded, fmt.Errorf("upsert chunks %d-%d: %w", start, end-1, err)
		}
		uploaded += count
		fmt.Printf("  upserted %d/%d\n", uploaded, len(chunks))
	}
	return uploaded, nil
}
