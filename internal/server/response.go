package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zeralabs/qnoracle/internal/oracle"
)

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc that
// Header.Set creates on every call.
var jsonCT = []string{"application/json"}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "invalid_request_error"
	return e
}

// errorStatus maps a domain error to its HTTP status, per the Coordinator's
// error taxonomy.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, oracle.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, oracle.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, oracle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, oracle.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, oracle.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrBadRequest), errors.Is(err, oracle.ErrBadConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}
