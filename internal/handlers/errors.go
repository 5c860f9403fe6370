package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
)

// statusForKind maps an error kind to its HTTP status
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindConflict:
		return http.StatusConflict
	case models.ErrorKindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured error body. Internal causes are logged
// but never sent to the client.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	be := models.AsBookingError(err)
	status := statusForKind(be.Kind)
	if be.Code == models.ErrForbidden.Code {
		status = http.StatusForbidden
	}

	entry := logger.WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"code":   be.Code,
		"status": status,
	})
	message := be.Message
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
		message = "Something went wrong. Please try again later."
	} else {
		entry.Debug(be.Message)
	}

	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    be.Kind,
			"code":    be.Code,
			"message": message,
		},
	})
}

// respondBindError reports a malformed request body or query
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"kind":    models.ErrorKindInvalid,
			"code":    models.ErrInvalidRequest.Code,
			"message": err.Error(),
		},
	})
}
