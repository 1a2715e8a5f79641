// Package response renders the gateway's uniform JSON envelope and converts
// Redis replies into JSON-safe values.
package response

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the wire shape of every gateway response.
type Envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Message   *string   `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// WriteError writes an error envelope with the given HTTP status.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{
		Success:   false,
		Message:   &message,
		Timestamp: time.Now().UTC(),
	})
}
