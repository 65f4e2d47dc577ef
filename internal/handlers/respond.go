package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "fairdice-backend/internal/errors"
)

const (
	defaultHours    = 24
	maxHours        = 24 * 30
	defaultPageSize = 10
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	body := gin.H{
		"success": false,
		"code":    code,
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		switch {
		case len(appErr.Metadata) > 0:
			body["details"] = appErr.Metadata
		case appErr.Cause != nil && status < http.StatusInternalServerError:
			body["details"] = appErr.Cause.Error()
		}
	} else {
		body["error"] = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		// causes of server-side failures stay in the log
		if code == apperrors.CodeUnknown {
			body["error"] = "internal error"
		}
	}

	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request", err))
}

// intQuery parses a positive integer query parameter, falling back to def
// when absent.
func intQuery(c *gin.Context, name string, def, max int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidInput, name+" must be a positive integer", map[string]string{name: raw})
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

func hoursQuery(c *gin.Context) (int, error) {
	return intQuery(c, "hours", defaultHours, maxHours)
}
