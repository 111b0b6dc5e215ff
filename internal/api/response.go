package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// errorResponse is the standard error response format.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to the response. Encoding is
// buffered so failures can be reported before headers are written.
func writeJSON(w http.ResponseWriter, log *zap.Logger, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		log.Error("json encode failed", zap.Error(err))
		writeErrorFallback(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Warn("write response failed", zap.Error(err))
	}
}

// writeError writes a JSON error response. The public message is what
// clients see; 5xx causes are logged, not exposed.
func writeError(w http.ResponseWriter, log *zap.Logger, status int, public string, err error) {
	if public == "" {
		public = http.StatusText(status)
	}
	if status >= 500 && err != nil {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, log, status, errorResponse{Error: public})
}

// writeErrorFallback writes a plain text error when JSON encoding fails.
func writeErrorFallback(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(message))
}
