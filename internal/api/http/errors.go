package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/widgetkit/internal/domain/widget"
	"github.com/GriffinCanCode/widgetkit/internal/providers/bundle"
	"github.com/GriffinCanCode/widgetkit/internal/providers/http/client"
)

// errorStatus maps domain errors onto HTTP status codes
func errorStatus(err error) int {
	var statusErr *client.StatusError
	switch {
	case errors.Is(err, widget.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, widget.ErrNoPath), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, widget.ErrInvalidBundle),
		errors.Is(err, bundle.ErrNoManifest),
		errors.Is(err, bundle.ErrMissingFile),
		errors.Is(err, bundle.ErrOutsideDir),
		errors.Is(err, bundle.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, widget.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, client.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorType labels an error for metrics
func errorType(err error) string {
	switch errorStatus(err) {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnprocessableEntity:
		return "invalid_bundle"
	case http.StatusConflict:
		return "inactive"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "upstream"
	default:
		return "internal"
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}
