package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/deepdish/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error  string `json:"error" validate:"required"`
	Kind   string `json:"kind,omitempty"`
	Fields any    `json:"fields,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindEmptyField, apperr.KindDeserializationFailed:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict, apperr.KindInUseByRecipe:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a command or query failure. Unknown errors are logged
// with their cause and answered with an opaque message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error(), Kind: kind.String()})
}

// writeResult writes v, or the failure when err is not a warning. A warning
// keeps the success status and is reported in the Warning header.
func writeResult(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil && !apperr.IsWarning(err) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		slog.Warn("request committed with warning",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		w.Header().Set("Warning", fmt.Sprintf("199 - %q", err.Error()))
	}
	if v == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

// decodeJSON reads and validates a request body. It writes the error
// response itself and reports whether the handler should go on.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst validation.Validatable) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			writeError(w, r, err)
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		}
		return false
	}
	if err := dst.Validate(); err != nil {
		var ve validation.Errors
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusUnprocessableEntity, errResponse{Error: "validation failed", Fields: ve})
		} else {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
		}
		return false
	}
	return true
}

// idParam parses a UUID path parameter, answering 400 when it is malformed.
func idParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid %s", name)))
		return uuid.Nil, false
	}
	return id, true
}
