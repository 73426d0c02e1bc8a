package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/infra/logging"
)

type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`   // business rule code
	Reason string `json:"reason,omitempty"` // token rejection reason
	Field  string `json:"field,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBusinessRule), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPayment):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Code: domain.RuleCode(err), Reason: string(domain.TokenRejection(err))}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}

	l := logging.With(r.Context(), s.log)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	default:
		l.Debug().Err(err).Int("status", status).Str("path", r.URL.Path).Msg("request rejected")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("body", err.Error())
	}
	return nil
}
