package handlers

import (
	"bytes"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		expected   string
	}{
		{"object", http.StatusOK, map[string]string{"status": "ok"}, "{\"status\":\"ok\"}\n"},
		{"array", http.StatusOK, []string{"a.jpg", "b.jpg"}, "[\"a.jpg\",\"b.jpg\"]\n"},
		{"nil body", http.StatusNoContent, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			assertStatusCode(t, recorder, tc.statusCode)
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
			}
			if recorder.Body.String() != tc.expected {
				t.Errorf("expected body %q, got %q", tc.expected, recorder.Body.String())
			}
		})
	}
}

func TestRespondJSON_EncodeFailure(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]float64{"x": math.NaN()})

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to encode response")
	if !strings.Contains(logs.String(), "failed to encode response") {
		t.Errorf("expected encode failure to be logged, got %q", logs.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a.jpg\r\nforged line"); got != "a.jpgforged line" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}
