package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "chartlab/internal/errors"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorDetail describes one failed check or application error.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// dataResponse writes an envelope with the given status.
func dataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data interface{}) error {
	return dataResponse(c, http.StatusOK, data)
}

func badRequestResponse(c echo.Context, details []ErrorDetail) error {
	return dataResponse(c, http.StatusBadRequest, details)
}

// errorResponse maps domain errors to HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "ERR_INTERNAL"
	switch {
	case apperrors.Is(err, apperrors.ErrDataNotFound), apperrors.Is(err, apperrors.ErrSymbolNotFound):
		status, code = http.StatusNotFound, "ERR_NOT_FOUND"
	case apperrors.Is(err, apperrors.ErrInvalidSeries):
		status, code = http.StatusUnprocessableEntity, "ERR_INVALID_SERIES"
	case apperrors.Is(err, apperrors.ErrUnknownIndicator),
		apperrors.Is(err, apperrors.ErrUnknownDetector),
		apperrors.Is(err, apperrors.ErrTooManyDetectors),
		apperrors.Is(err, apperrors.ErrInvalidPeriod),
		apperrors.Is(err, apperrors.ErrInputValidation):
		status, code = http.StatusBadRequest, "ERR_BAD_REQUEST"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Something went wrong"
	}
	return dataResponse(c, status, []ErrorDetail{{Code: code, Message: message}})
}
