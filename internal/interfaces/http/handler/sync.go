package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appsync "github.com/shopfront/backend/internal/application/sync"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// SyncTrigger submits manual sync runs to the background scheduler
type SyncTrigger interface {
	TriggerFullSync() error
	TriggerDeltaSync(since *time.Time) error
}

// SyncHandler exposes the operational surface of the sync engine: health,
// manual triggers, the sync log and dead-letter remediation.
type SyncHandler struct {
	BaseHandler
	orchestrator *appsync.Orchestrator
	oplog        syncdomain.OperationLogger
	logRepo      syncdomain.SyncLogRepository
	trigger      SyncTrigger
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	orchestrator *appsync.Orchestrator,
	oplog syncdomain.OperationLogger,
	logRepo syncdomain.SyncLogRepository,
	trigger SyncTrigger,
) *SyncHandler {
	return &SyncHandler{
		orchestrator: orchestrator,
		oplog:        oplog,
		logRepo:      logRepo,
		trigger:      trigger,
	}
}

// GetStatus handles GET /api/v1/sync/status
func (h *SyncHandler) GetStatus(c *gin.Context) {
	status, err := h.orchestrator.GetSyncStatus(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to assemble sync status")
		return
	}
	h.Success(c, toSyncStatusResponse(status))
}

// TriggerFullSync handles POST /api/v1/sync/full
func (h *SyncHandler) TriggerFullSync(c *gin.Context) {
	if err := h.trigger.TriggerFullSync(); err != nil {
		h.Error(c, http.StatusServiceUnavailable, "ERR_SCHEDULER_UNAVAILABLE", err.Error())
		return
	}
	h.Success(c, TriggerResponse{Submitted: true, Kind: "FULL_SYNC"})
}

// TriggerDeltaSync handles POST /api/v1/sync/delta. The body may carry an
// explicit window start; without one the run uses the stored watermarks.
func (h *SyncHandler) TriggerDeltaSync(c *gin.Context) {
	var req DeltaSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	if err := h.trigger.TriggerDeltaSync(req.Since); err != nil {
		h.Error(c, http.StatusServiceUnavailable, "ERR_SCHEDULER_UNAVAILABLE", err.Error())
		return
	}
	h.Success(c, TriggerResponse{Submitted: true, Kind: "DELTA_SYNC"})
}

// ListDeadLetters handles GET /api/v1/sync/dead-letters
func (h *SyncHandler) ListDeadLetters(c *gin.Context) {
	items, err := h.oplog.GetDeadLetterItems(c.Request.Context())
	if err != nil {
		h.InternalError(c, "Failed to list dead-letter items")
		return
	}
	h.Success(c, toSyncLogResponses(items))
}

// RequeueDeadLetter handles POST /api/v1/sync/dead-letters/:id/requeue
func (h *SyncHandler) RequeueDeadLetter(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid log ID")
		return
	}

	if err := h.oplog.RequeueDeadLetter(c.Request.Context(), logID); err != nil {
		switch {
		case errors.Is(err, syncdomain.ErrLogNotFound):
			h.NotFound(c, "Sync log not found")
		case errors.Is(err, syncdomain.ErrInvalidTransition):
			h.Conflict(c, "Item is not in the dead letter")
		default:
			h.InternalError(c, "Failed to requeue item")
		}
		return
	}
	h.Success(c, gin.H{"requeued": true})
}

// MarkUnrecoverable handles POST /api/v1/sync/dead-letters/:id/unrecoverable
func (h *SyncHandler) MarkUnrecoverable(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid log ID")
		return
	}

	var req MarkUnrecoverableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.oplog.MarkAsUnrecoverable(c.Request.Context(), logID, req.Reason); err != nil {
		switch {
		case errors.Is(err, syncdomain.ErrLogNotFound):
			h.NotFound(c, "Sync log not found")
		case errors.Is(err, syncdomain.ErrInvalidTransition):
			h.Conflict(c, "Item is already closed")
		default:
			h.InternalError(c, "Failed to close item")
		}
		return
	}
	h.Success(c, gin.H{"closed": true})
}

// ListLogs handles GET /api/v1/sync/logs
func (h *SyncHandler) ListLogs(c *gin.Context) {
	var req ListSyncLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := syncdomain.LogFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 50
	}
	if req.EntityType != "" {
		et := syncdomain.EntityType(req.EntityType)
		filter.EntityType = &et
	}
	if req.Direction != "" {
		d := syncdomain.Direction(req.Direction)
		filter.Direction = &d
	}
	if req.Status != "" {
		s := syncdomain.Status(req.Status)
		filter.Status = &s
	}
	if req.Since != "" {
		since, err := parseDateTime(req.Since)
		if err != nil {
			h.BadRequest(c, "Invalid since parameter")
			return
		}
		filter.Since = &since
	}

	logs, total, err := h.logRepo.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.InternalError(c, "Failed to list sync logs")
		return
	}
	h.SuccessWithMeta(c, toSyncLogResponses(logs), total, filter.Page, filter.PageSize)
}

// GetStatistics handles GET /api/v1/sync/statistics
func (h *SyncHandler) GetStatistics(c *gin.Context) {
	var req StatisticsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if req.Since != "" {
		parsed, err := parseDateTime(req.Since)
		if err != nil {
			h.BadRequest(c, "Invalid since parameter")
			return
		}
		since = parsed
	}

	stats, err := h.oplog.GetStatistics(c.Request.Context(), since)
	if err != nil {
		h.InternalError(c, "Failed to compute statistics")
		return
	}
	h.Success(c, toStatisticsResponse(stats))
}
