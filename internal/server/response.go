package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

type APIResponse[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func writeJSON[T any](w http.ResponseWriter, status int, data T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[T]{
		Message: "ok",
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse[string]{
		Message: message,
		Data:    "",
	})
}

// writeAppError maps err to a response. Errors without an application code
// are logged and reported as a generic internal error.
func writeAppError(w http.ResponseWriter, err error) {
	if ae, ok := apperror.As(err); ok {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	slog.Error("unhandled error", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
