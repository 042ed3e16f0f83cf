package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/transport"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"` // upstream status for remote failures
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		handlerLogger.Error().Err(err).Msg("Error writing response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// writeServiceError maps lifecycle errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var remote *transport.RemoteServiceError
	switch {
	case errors.Is(err, model.ErrDraftNotFound):
		writeError(w, http.StatusNotFound, config.HTTPErrDraftNotFound)
	case errors.Is(err, model.ErrInvalidDocType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &remote):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: remote.Error(), Status: remote.Status})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
