package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/artmap/internal/corpus"
)

func TestSystemHandler_Health(t *testing.T) {
	catalog := loadedCatalog(t, testSource())
	h := NewSystemHandler(catalog, catalog.Load)

	recorder := httptest.NewRecorder()
	h.Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp HealthResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "ok" || resp.Snapshot.Records != 3 || resp.Snapshot.Vectors != 3 || !resp.Snapshot.Similarity {
		t.Errorf("unexpected health response %+v", resp)
	}
}

// pingSource is a snapshot source with a connection check.
type pingSource struct {
	*memorySource
	err error
}

func (p *pingSource) Ping(ctx context.Context) error {
	return p.err
}

func TestSystemHandler_HealthPingsSource(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{"reachable", nil, http.StatusOK, "ok"},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			catalog := loadedCatalog(t, &pingSource{memorySource: testSource(), err: tc.pingErr})
			h := NewSystemHandler(catalog, catalog.Load)

			recorder := httptest.NewRecorder()
			h.Health(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assertStatusCode(t, recorder, tc.wantStatus)
			var resp HealthResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Status != tc.wantState || resp.Snapshot.Records != 3 {
				t.Errorf("unexpected health response %+v", resp)
			}
		})
	}
}

func TestSystemHandler_Reload(t *testing.T) {
	src := testSource()
	catalog := loadedCatalog(t, src)
	h := NewSystemHandler(catalog, catalog.Load)

	src.records = append(src.records, corpus.ImageRecord{Path: "degas/d.jpg", Author: "degas", ClassID: 3})
	src.vectors.Add("degas/d.jpg", []float32{9, 9})

	recorder := httptest.NewRecorder()
	h.Reload(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp HealthResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Status != "reloaded" || resp.Snapshot.Records != 4 {
		t.Errorf("unexpected reload response %+v", resp)
	}
}

func TestSystemHandler_ReloadFailure(t *testing.T) {
	catalog := loadedCatalog(t, testSource())
	h := NewSystemHandler(catalog, func(ctx context.Context) error {
		return errors.New("features missing")
	})

	recorder := httptest.NewRecorder()
	h.Reload(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/reload", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "reload failed: features missing")
	if catalog.Status().Records != 3 {
		t.Error("expected previous snapshot to stay loaded")
	}
}
