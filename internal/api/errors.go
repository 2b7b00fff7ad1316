package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/matheus3301/fitmsg/internal/composer"
	"github.com/matheus3301/fitmsg/internal/model"
)

const errSuperseded = "superseded by a newer request"

// StatusFor maps a domain error to the HTTP status served to local clients.
func StatusFor(err error) int {
	var (
		ve *model.ValidationError
		se *model.ServerError
		te *model.TransportError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, composer.ErrSendInProgress), model.IsStale(err):
		return http.StatusConflict
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNoActivePeer):
		return http.StatusNotFound
	case errors.As(err, &se):
		return http.StatusBadGateway
	case errors.As(err, &te):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Backend messages are passed through verbatim;
// stale response details stay internal.
func writeError(w http.ResponseWriter, err error) {
	body := ErrorView{Error: err.Error()}
	var ve *model.ValidationError
	var se *model.ServerError
	switch {
	case model.IsStale(err):
		body.Error = errSuperseded
	case errors.As(err, &ve):
		body.Field = ve.Field
	case errors.As(err, &se) && se.Message != "":
		body.Error = se.Message
	}
	writeJSON(w, StatusFor(err), body)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &model.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &model.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return id, nil
}
