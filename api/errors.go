package api

import (
	"errors"
	"net/http"

	"github.com/khaledhikmat/crackwatch/model"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidReference), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrModelUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
