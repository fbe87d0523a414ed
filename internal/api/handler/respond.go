package handler

import (
	"net/http"

	"gamelauncher/backend/internal/apperrors"

	"github.com/gin-gonic/gin"
)

// respondError maps an error to its HTTP status. Forbidden and not-found
// conversations produce the same body.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	message := apperrors.MessageOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperrors.CodeNotFound, apperrors.CodePermissionDenied:
		status = http.StatusNotFound
		code = apperrors.CodeNotFound
	case apperrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.CodeAlreadyExists, apperrors.CodeFailedPrecondition:
		status = http.StatusConflict
	case apperrors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case apperrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	default:
		code = apperrors.CodeInternal
		message = "internal error"
	}

	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": message})
}
