package semantic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedderPlainShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [[1, 0], [0, 1]]}`))
	}))
	t.Cleanup(server.Close)

	embedder := NewHTTPEmbedder(EmbedderOptions{Endpoint: server.URL})
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestHTTPEmbedderOpenAIShape(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Out of order on purpose; the client must sort by index.
		_, _ = w.Write([]byte(`{"data": [{"index": 1, "embedding": [0, 1]}, {"index": 0, "embedding": [1, 0]}]}`))
	}))
	t.Cleanup(server.Close)

	embedder := NewHTTPEmbedder(EmbedderOptions{Endpoint: server.URL + "/v1/embeddings"})
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("expected index-sorted vectors, got %v", vectors)
	}
}

func TestHTTPEmbedderCountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings": [[1, 0]]}`))
	}))
	t.Cleanup(server.Close)

	embedder := NewHTTPEmbedder(EmbedderOptions{Endpoint: server.URL})
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	if got := normalizeEndpoint("http://127.0.0.1:8844"); got != "http://127.0.0.1:8844/embed" {
		t.Fatalf("unexpected endpoint normalization: %q", got)
	}
	if got := normalizeEndpoint("http://127.0.0.1:8844/v1/embeddings"); got != "http://127.0.0.1:8844/v1/embeddings" {
		t.Fatalf("unexpected endpoint normalization for explicit path: %q", got)
	}
	if got := normalizeEndpoint(""); got != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", got)
	}
}
