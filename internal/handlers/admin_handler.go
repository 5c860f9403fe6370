package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-reservation/internal/models"
	"github.com/smarttransit/seat-reservation/internal/services"
)

// AdminHandler exposes the reconciliation job to operators
type AdminHandler struct {
	cron   *services.CronService
	logger *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cron *services.CronService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		cron:   cron,
		logger: logger,
	}
}

// JobStatus handles GET /api/v1/admin/reconcile
func (h *AdminHandler) JobStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.cron.GetJobStatus(),
	})
}

// RunReconciliation handles POST /api/v1/admin/reconcile
func (h *AdminHandler) RunReconciliation(c *gin.Context) {
	report, err := h.cron.RunReconciliationNow()
	if err != nil {
		respondError(c, h.logger, models.ErrInternal.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"clean":   report.Clean(),
		"data":    report,
	})
}
