package handlers

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response. Data that cannot be encoded is logged
// and answered with a 500.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		log.Printf("Error: failed to encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		buf.Reset()
		json.NewEncoder(&buf).Encode(map[string]string{"error": "failed to encode response"})
		w.Write(buf.Bytes())
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Warning: failed to write response: %v", err)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
