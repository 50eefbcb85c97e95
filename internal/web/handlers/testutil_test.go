package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/artmap/internal/corpus"
	"github.com/kozaktomas/artmap/internal/snapshot"
)

// memorySource serves a fixed snapshot.
type memorySource struct {
	records    []corpus.ImageRecord
	vectors    *corpus.VectorStore
	vectorsErr error
	recordsErr error
}

func (m *memorySource) LoadRecords(ctx context.Context) ([]corpus.ImageRecord, error) {
	return m.records, m.recordsErr
}

func (m *memorySource) LoadVectors(ctx context.Context) (*corpus.VectorStore, error) {
	return m.vectors, m.vectorsErr
}

func (m *memorySource) LatestManifest(ctx context.Context) (*corpus.Manifest, error) {
	return nil, nil
}

// testSource returns records for three paintings on a line so the distance
// order is a, b, c from a.
func testSource() *memorySource {
	records := []corpus.ImageRecord{
		{Path: "vanGogh/a.jpg", Author: "vanGogh", ClassID: 1, ClusterID: 0, X: 1, Y: 2},
		{Path: "vanGogh/b.jpg", Author: "vanGogh", ClassID: 1, ClusterID: 0, X: 3, Y: 4},
		{Path: "monet/c.jpg", Author: "monet", ClassID: 2, ClusterID: 1, X: -1, Y: 0},
	}
	store := corpus.NewVectorStore()
	store.Add("vanGogh/a.jpg", []float32{0, 0})
	store.Add("vanGogh/b.jpg", []float32{1, 0})
	store.Add("monet/c.jpg", []float32{5, 0})
	return &memorySource{records: records, vectors: store}
}

// loadedCatalog builds a catalog from src and loads it.
func loadedCatalog(t *testing.T, src snapshot.Source) *snapshot.Catalog {
	t.Helper()
	c := snapshot.NewCatalog(src)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return c
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
