package pagecraft

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pagecraft/pagecraft/pkg/models"
	"github.com/pagecraft/pagecraft/pkg/mutation"
	"github.com/pagecraft/pagecraft/pkg/registry"
	"github.com/pagecraft/pagecraft/pkg/slots"
	"github.com/pagecraft/pagecraft/pkg/store"
	"github.com/pagecraft/pagecraft/pkg/tree"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps engine and store errors to HTTP status codes.
func statusFor(err error) int {
	var (
		index  *slots.IndexError
		syntax *json.SyntaxError
		typ    *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mutation.ErrCycle),
		errors.Is(err, models.ErrConstraintViolation):
		return http.StatusConflict
	case errors.As(err, &index),
		errors.Is(err, registry.ErrUnknownType),
		errors.Is(err, models.ErrIncompleteTree),
		errors.Is(err, tree.ErrCycle),
		errors.Is(err, models.ErrDanglingReference):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syntax), errors.As(err, &typ), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		loggerFrom(r).Error().Err(err).Msg("request failed")
		msg = http.StatusText(status)
	}
	respondJSON(w, status, ErrorBody{Error: msg, RequestID: requestID(r)})
}
