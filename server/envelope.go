package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-authenticator/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	statusSuccess = "success"
	statusError   = "error"

	unexpectedErrorMessage = "An unexpected error occurred."
)

// envelope wraps every JSON API response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result"`
	Version string `json:"version"`
}

type errorResult struct {
	Error string `json:"error"`
}

// errorKind pairs an error sentinel with its status and machine readable
// name. Order matters: the first match wins.
type errorKind struct {
	sentinel error
	status   int
	name     string
}

var errorKinds = []errorKind{
	{errors.ErrValidation, http.StatusBadRequest, "validation_error"},
	{errors.ErrUnsupportedGrantType, http.StatusBadRequest, "unsupported_grant_type"},
	{errors.ErrNotFound, http.StatusNotFound, "not_found"},
	{errors.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{errors.ErrInvalidClient, http.StatusUnauthorized, "invalid_client"},
	{errors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{errors.ErrInvalidGrant, http.StatusUnauthorized, "invalid_grant"},
	{errors.ErrStateMismatch, http.StatusInternalServerError, "state_mismatch"},
	{errors.ErrMissingCode, http.StatusInternalServerError, "missing_code"},
	{errors.ErrConfiguration, http.StatusInternalServerError, "configuration_error"},
	{errors.ErrProvider, http.StatusBadGateway, "provider_error"},
	{errors.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
}

// classify returns the status, kind name and caller-safe message for err.
// Unclassified errors are internal and their text is never shown.
func classify(err error) (int, string, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			return k.status, k.name, errors.Message(err, k.sentinel.Error())
		}
	}
	return http.StatusInternalServerError, "server_error", unexpectedErrorMessage
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	body.Version = s.version
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeOK(w http.ResponseWriter, status int, message string, result any) {
	s.writeJSON(w, status, envelope{Status: statusSuccess, Message: message, Result: result})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, message := classify(err)
	logFailure(r, status, kind, err)
	s.writeJSON(w, status, envelope{Status: statusError, Message: message, Result: errorResult{Error: kind}})
}

func logFailure(r *http.Request, status int, kind string, err error) {
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("kind", kind).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
}

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WithCause(errors.ErrValidation, "request body is not valid JSON for this endpoint", err)
	}
	return nil
}
