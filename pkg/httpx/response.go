package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body every Showcase service returns.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes a JSON response with the given status code. It sets the
// Content-Type and no-store cache headers; auth responses carry tokens and
// must never be cached.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in a success envelope.
func WriteData(w http.ResponseWriter, code int, v any) {
	WriteJSON(w, code, Envelope{Success: true, Data: v})
}

// WriteMessage writes a success envelope carrying only a message.
func WriteMessage(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Envelope{Success: true, Message: msg})
}

// WriteError writes a failure envelope with a client-safe error string.
func WriteError(w http.ResponseWriter, code int, msg string) {
	WriteJSON(w, code, Envelope{Success: false, Error: msg})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
