package api

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"

	"github.com/rewired-gh/powerprices/internal/logger"
	"github.com/rewired-gh/powerprices/internal/models"
	"github.com/rewired-gh/powerprices/internal/pipeline"
	"github.com/rewired-gh/powerprices/internal/storage"
)

// CodedError carries the HTTP status an error should be answered with.
type CodedError struct {
	code int
	err  error
}

func NewCodedError(code int, err error) *CodedError {
	return &CodedError{code: code, err: err}
}

func (e *CodedError) Error() string { return e.err.Error() }
func (e *CodedError) Code() int     { return e.code }
func (e *CodedError) Unwrap() error { return e.err }

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// coded attaches a status to the service errors a client can cause.
func coded(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrInvalidView), errors.Is(err, storage.ErrNotFound):
		return NewCodedError(http.StatusNotFound, err)
	case errors.Is(err, models.ErrInvalidGranularity),
		errors.Is(err, models.ErrInvalidAlignment),
		errors.Is(err, pipeline.ErrUnknownCountry):
		return NewCodedError(http.StatusBadRequest, err)
	}
	return err
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	msg := err.Error()
	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	} else {
		for e := err; e != nil; e = errors.Unwrap(e) {
			if ce, ok := e.(*CodedError); ok {
				code = ce.Code()
				break
			}
		}
	}

	if code >= http.StatusInternalServerError {
		logger.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		sentry.CaptureException(err)
	}

	_ = c.JSON(code, ErrorResponse{
		Message: msg,
		Code:    code,
	})
}
