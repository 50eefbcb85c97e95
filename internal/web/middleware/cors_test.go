package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := CORS([]string{"https://art.example.com"})(next)

	tests := []struct {
		name        string
		method      string
		origin      string
		wantAllowed bool
		wantStatus  int
	}{
		{"listed origin", http.MethodGet, "https://art.example.com", true, http.StatusOK},
		{"localhost any port", http.MethodGet, "http://localhost:5173", true, http.StatusOK},
		{"loopback", http.MethodGet, "http://127.0.0.1:8080", true, http.StatusOK},
		{"localhost lookalike", http.MethodGet, "http://localhost.evil.com", false, http.StatusOK},
		{"unlisted origin", http.MethodGet, "https://evil.example.com", false, http.StatusOK},
		{"no origin", http.MethodGet, "", false, http.StatusOK},
		{"preflight", http.MethodOptions, "http://localhost:3000", true, http.StatusNoContent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/get_van_gogh_data", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.wantAllowed && got != tc.origin {
				t.Errorf("expected origin %q to be allowed, got %q", tc.origin, got)
			}
			if !tc.wantAllowed && got != "" {
				t.Errorf("expected no allow header, got %q", got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected CSP header")
	}
}
