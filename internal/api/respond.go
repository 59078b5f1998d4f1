package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/datafile"
	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/prediction"
	"github.com/utakatalp/volley-simulator/internal/results"
	"github.com/utakatalp/volley-simulator/internal/scenario"
	"github.com/utakatalp/volley-simulator/internal/store"
)

const maxBodyBytes = 1 << 20

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...any) error {
	return HandlerError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return badRequest("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return HandlerError{Status: http.StatusBadRequest, Message: "invalid JSON body", Err: err}
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return badRequest("invalid JSON body")
	}
	return nil
}

// readBody returns the raw body, which may be empty.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, HandlerError{Status: http.StatusRequestEntityTooLarge, Message: "request body too large", Err: err}
	}
	return bytes.TrimSpace(raw), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var he HandlerError
	switch {
	case errors.As(err, &he):
		return he.Status
	case errors.Is(err, scenario.ErrUnknownLeague),
		errors.Is(err, scenario.ErrUnknownGroup),
		errors.Is(err, results.ErrUnknownLeague),
		errors.Is(err, datafile.ErrUnknownLeague),
		errors.Is(err, datafile.ErrNotFound),
		errors.Is(err, league.ErrUnknownTeam),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, scenario.ErrInvalidOverride),
		errors.Is(err, league.ErrMalformedScore),
		errors.Is(err, league.ErrInvalidTrials),
		errors.Is(err, league.ErrInvalidConfig),
		errors.Is(err, prediction.ErrInvalidPrediction),
		errors.Is(err, prediction.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrMatchPlayed),
		errors.Is(err, store.ErrPredictionScored):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		body = errorBody{Error: http.StatusText(status), RequestID: RequestIDFromContext(r.Context())}
	}
	respond(w, r, status, body)
}
