package server

import (
	"errors"
	"net/http"

	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/docio"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/script"
)

// Server errors.
var (
	// ErrDisabled is returned for endpoints whose backing feature is
	// turned off in the configuration.
	ErrDisabled = errors.New("feature disabled")

	// ErrBadRequest wraps malformed query parameters.
	ErrBadRequest = errors.New("bad request")
)

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	var (
		cmdErr   *dispatcher.CommandError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, dispatcher.ErrBatchTooLarge),
		errors.Is(err, script.ErrTooManyCommands):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, engine.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrPageNotFound), errors.Is(err, ErrDisabled):
		return http.StatusNotFound
	case errors.Is(err, script.ErrTimeout):
		return http.StatusRequestTimeout
	case errors.As(err, &cmdErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrBadRequest), errors.Is(err, command.ErrInvalidCommand),
		errors.Is(err, docio.ErrUnknownFormat), errors.Is(err, docio.ErrInvalidDocument):
		return http.StatusBadRequest
	}
	var se *script.ScriptError
	if errors.As(err, &se) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
