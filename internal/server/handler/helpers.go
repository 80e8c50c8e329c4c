package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

// writeJSON marshals v as JSON and writes it with status. A marshal failure
// becomes a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP statuses. Bad upstream fill data is
// the exchange's fault, not the caller's, hence 502.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidMetricRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrMalformedFill),
		errors.Is(err, domain.ErrUnknownSide),
		errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes the mapped status. Client errors echo
// the message; server errors hide it behind fallback.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: "+fallback,
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	} else {
		logger.WarnContext(r.Context(), "handler: rejected request",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}

	msg := fallback
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusNotFound, http.StatusBadGateway:
		msg = err.Error()
	case http.StatusTooManyRequests:
		msg = "upstream rate limit exceeded"
	}
	writeError(w, status, msg)
}

// parseUserQuery reads user, coin, fromMs, toMs and builderOnly.
func parseUserQuery(r *http.Request) (service.UserQuery, error) {
	q := r.URL.Query()
	from, err := optInt64(q.Get("fromMs"), "fromMs")
	if err != nil {
		return service.UserQuery{}, err
	}
	to, err := optInt64(q.Get("toMs"), "toMs")
	if err != nil {
		return service.UserQuery{}, err
	}
	builderOnly, err := optBool(q.Get("builderOnly"), "builderOnly")
	if err != nil {
		return service.UserQuery{}, err
	}
	return service.UserQuery{
		User:        strings.TrimSpace(q.Get("user")),
		Coin:        strings.TrimSpace(q.Get("coin")),
		FromMs:      from,
		ToMs:        to,
		BuilderOnly: builderOnly,
	}, nil
}

func optInt64(v, name string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidQuery, name)
	}
	return &n, nil
}

func optFloat(v, name string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidQuery, name)
	}
	return &f, nil
}

func optBool(v, name string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", domain.ErrInvalidQuery, name)
	}
	return b, nil
}

// decimalString renders f without exponent and without trailing zeros.
func decimalString(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
