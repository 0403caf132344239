package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/internal/services"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var statusByKind = map[services.Kind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindNotFound:      http.StatusNotFound,
	services.KindForbidden:     http.StatusForbidden,
	services.KindUnauthorized:  http.StatusUnauthorized,
	services.KindConflict:      http.StatusConflict,
	services.KindUnavailable:   http.StatusServiceUnavailable,
	services.KindRenderOrStore: http.StatusInternalServerError,
	services.KindInternal:      http.StatusInternalServerError,
}

// StatusOf maps a service error onto an HTTP status
func StatusOf(err error) int {
	if status, ok := statusByKind[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RespondError writes err as an ErrorResponse. Server errors are logged and
// their detail is not sent to the caller.
func RespondError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := StatusOf(err)

	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Error().
			Err(err).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(RequestIDKey)).
			Msg("Request failed")
		message = "internal server error"
	} else if svcErr := asServiceError(err); svcErr != nil {
		message = svcErr.Message
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Message: message,
		Code:    strings.ToUpper(string(kind)),
	})
}

// RespondBindError reports a request body or query that failed to bind
func RespondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: "request body too large",
			Code:    "PAYLOAD_TOO_LARGE",
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Message: err.Error(),
		Code:    strings.ToUpper(string(services.KindValidation)),
	})
}

func asServiceError(err error) *services.Error {
	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}
