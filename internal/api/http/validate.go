package http

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/widgetkit/internal/shared/id"
)

var errBadRequest = errors.New("bad request")

const maxEventTypeLength = 128

// mountID reads and validates the :id route parameter
func mountID(c *gin.Context) (id.MountID, error) {
	mid, err := id.ParseMountID(c.Param("id"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return mid, nil
}

// validateBundlePath accepts http(s) URLs and relative paths that stay
// inside the bundle root.
func validateBundlePath(p string) error {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return nil
	}
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return fmt.Errorf("%w: bundle path %q", errBadRequest, p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: bundle path %q escapes the root", errBadRequest, p)
	}
	return nil
}

func validateEventType(t string) error {
	if t == "" || len(t) > maxEventTypeLength {
		return fmt.Errorf("%w: event type must be 1-%d characters", errBadRequest, maxEventTypeLength)
	}
	return nil
}
