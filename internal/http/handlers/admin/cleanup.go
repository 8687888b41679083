package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/threadline/storefront/internal/constants"
	handlershared "github.com/threadline/storefront/internal/http/handlers/shared"
	"github.com/threadline/storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// CleanupRequest 清理请求体
type CleanupRequest struct {
	AbandonedMinutes int  `json:"abandonedMinutes"`
	DryRun           bool `json:"dryRun"`
}

// GetCleanup ?stats=true 返回待清理订单的时长分布，否则执行一次清理
func (h *Handler) GetCleanup(c *gin.Context) {
	minutes, err := parseMinutesQuery(c)
	if err != nil {
		handlershared.RespondStatus(c, http.StatusBadRequest, "error.bad_request", nil)
		return
	}
	if isTruthy(c.Query("stats")) {
		stats, err := h.PaymentService.SweepStats(minutes)
		if err != nil {
			requestLog(c).Errorw("abandoned_sweep_stats_failed", "error", err)
			handlershared.RespondStatus(c, http.StatusInternalServerError, "error.internal", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"stats":     stats,
			"requestId": handlershared.RequestID(c),
		})
		return
	}
	h.runCleanup(c, CleanupRequest{AbandonedMinutes: minutes, DryRun: isTruthy(c.Query("dryRun"))})
}

// PostCleanup 按请求体参数执行清理
func (h *Handler) PostCleanup(c *gin.Context) {
	var req CleanupRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			handlershared.RespondStatus(c, http.StatusBadRequest, "error.bad_request", nil)
			return
		}
	}
	if req.AbandonedMinutes < 0 {
		handlershared.RespondStatus(c, http.StatusBadRequest, "error.bad_request", nil)
		return
	}
	h.runCleanup(c, req)
}

func (h *Handler) runCleanup(c *gin.Context, req CleanupRequest) {
	requestID := handlershared.RequestID(c)
	result, err := h.PaymentService.SweepAbandoned(service.SweepInput{
		AbandonedMinutes: req.AbandonedMinutes,
		DryRun:           req.DryRun,
		Trigger:          constants.SweepTriggerHTTP,
		RequestID:        requestID,
	})
	if err != nil {
		requestLog(c).Errorw("abandoned_sweep_http_failed", "error", err)
		handlershared.RespondStatus(c, http.StatusInternalServerError, "error.internal", nil)
		return
	}
	_, byCron := c.Get(handlershared.ContextCronAuth)
	requestLog(c).Infow("abandoned_sweep_http_finished",
		"dry_run", result.DryRun,
		"found", result.Found,
		"cancelled", result.Cancelled,
		"by_cron", byCron,
	)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"result":    result,
		"requestId": requestID,
	})
}

func parseMinutesQuery(c *gin.Context) (int, error) {
	raw := strings.TrimSpace(c.Query("abandonedMinutes"))
	if raw == "" {
		raw = strings.TrimSpace(c.Query("minutes"))
	}
	if raw == "" {
		return 0, nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 0 {
		return 0, strconv.ErrSyntax
	}
	return minutes, nil
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
