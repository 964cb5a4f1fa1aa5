// Package utils holds small helpers shared by the HTTP handlers.
package utils

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

const (
	ContentTypeHeaderName = "Content-Type"
	ContentTypeText       = "text/plain; charset=utf-8"
	ContentTypeJSON       = "application/json"
)

// WritePlainText writes text as a plain text response. Chat bots post the
// body as is, so user-facing errors are sent this way too.
func WritePlainText(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set(ContentTypeHeaderName, ContentTypeText)
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		logrus.Errorf("Failed to write response body: %v", err)
	}
}

// WriteJSON encodes v as a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(ContentTypeHeaderName, ContentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response body: %v", err)
	}
}
