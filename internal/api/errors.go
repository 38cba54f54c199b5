package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"bandspace/internal/apperr"
	"bandspace/pkg/db"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor maps a domain error kind onto its HTTP status.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalidState:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// WriteAppError renders err. Domain errors keep their kind and message;
// anything else is logged and reported as an opaque internal error.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := apperr.As(err); ok {
		WriteError(w, StatusFor(e.Kind), string(e.Kind), e.Message)
		return
	}
	if db.IsInvalidText(err) {
		// Ids are uuids; anything else cannot name an existing row.
		WriteError(w, http.StatusNotFound, string(apperr.KindNotFound), "not found")
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

// DecodeJSON decodes the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid json: %v", err)
	}
	return nil
}

// RequireSelf fails with Forbidden unless the session belongs to userID.
func RequireSelf(s *Session, userID string) error {
	if s == nil || s.UserID != userID {
		return apperr.Forbidden("not allowed to read another user's data")
	}
	return nil
}
