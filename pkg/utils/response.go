package utils

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/diagnobuddy/backend/pkg/apperror"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondAPIError translates a classified error into the matching status code.
// Errors without a kind are reported as 500 with a generic message.
func RespondAPIError(w http.ResponseWriter, err error) {
	kind, ok := apperror.KindOf(err)
	if !ok {
		log.Printf("unclassified error: %v", err)
		RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	RespondError(w, apperror.HTTPStatus(kind), apperror.MessageOf(err))
}
