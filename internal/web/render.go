package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hpungsan/jarvis/internal/errors"
)

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError maps err onto its HTTP status and a JSON error body. Internal
// errors are logged and replaced with a generic message.
func renderError(w http.ResponseWriter, logger *slog.Logger, err error) {
	jErr, ok := errors.As(err)
	if !ok {
		jErr = errors.NewInternal(err)
	}

	errorObj := map[string]any{
		"code":    string(jErr.Code),
		"message": jErr.Message,
		"status":  jErr.Status,
	}
	if jErr.Code == errors.ErrInternal {
		logger.Error("request failed", "error", err)
		errorObj["message"] = "an internal error occurred"
	} else if jErr.Details != nil {
		errorObj["details"] = jErr.Details
	}

	renderJSON(w, jErr.Status, map[string]any{
		"status": "error",
		"error":  errorObj,
	})
}

// decodeBody reads a JSON request body into T. An empty body decodes to the
// zero value.
func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return v, nil
		}
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return v, errors.NewInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return v, errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return v, nil
}
