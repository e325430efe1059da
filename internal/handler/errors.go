package handler

import (
	"errors"
	"net/http"

	"affiliate-payouts/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrUnknownReferralCode),
		errors.Is(err, model.ErrWebhookSignature):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyExists),
		errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, model.ErrHoldPeriodNotElapsed),
		errors.Is(err, model.ErrNoEligibleCommissions),
		errors.Is(err, model.ErrBatchClosed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrExternalSubmissionFailure):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrPayoutStatusUnknown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := StatusFor(err)
		message := err.Error()

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		}

		if code >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": code,
			}).Error("request failed")
		}
		if code == http.StatusInternalServerError {
			message = http.StatusText(code)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: message})
	}
}
