package handler

import (
	"time"

	appsync "github.com/shopfront/backend/internal/application/sync"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// ===================== Request Types =====================

// ListSyncLogsRequest represents query parameters for filtering sync logs
type ListSyncLogsRequest struct {
	EntityType string `form:"entity_type" binding:"omitempty,oneof=STOCK PRICE CUSTOMER ORDER INVOICE"`
	Direction  string `form:"direction" binding:"omitempty,oneof=TO_ERP FROM_ERP"`
	Status     string `form:"status" binding:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED FAILED DEAD_LETTER"`
	Since      string `form:"since" binding:"omitempty"`
	Page       int    `form:"page" binding:"omitempty,gte=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,gte=1,lte=200"`
}

// MarkUnrecoverableRequest represents the operator reason for closing a
// dead-letter item permanently
type MarkUnrecoverableRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// DeltaSyncRequest represents the optional explicit window start for a
// manually triggered delta sync
type DeltaSyncRequest struct {
	Since *time.Time `json:"since" binding:"omitempty"`
}

// StatisticsRequest represents query parameters for the statistics endpoint
type StatisticsRequest struct {
	Since string `form:"since" binding:"omitempty"`
}

// ===================== Response Types =====================

// SyncLogResponse represents one sync log row in API responses
type SyncLogResponse struct {
	ID            string  `json:"id"`
	EntityType    string  `json:"entity_type"`
	Direction     string  `json:"direction"`
	ExternalID    string  `json:"external_id"`
	InternalID    string  `json:"internal_id,omitempty"`
	Status        string  `json:"status"`
	AttemptCount  int     `json:"attempt_count"`
	Retryable     bool    `json:"retryable"`
	LastError     string  `json:"last_error,omitempty"`
	NextRetryAt   *string `json:"next_retry_at,omitempty"`
	LastAttemptAt string  `json:"last_attempt_at"`
	Message       string  `json:"message,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// toSyncLogResponse converts a domain sync log to its API representation
func toSyncLogResponse(log *syncdomain.SyncLog) SyncLogResponse {
	resp := SyncLogResponse{
		ID:            log.ID.String(),
		EntityType:    log.EntityType.String(),
		Direction:     log.Direction.String(),
		ExternalID:    log.ExternalID,
		InternalID:    log.InternalID,
		Status:        log.Status.String(),
		AttemptCount:  log.AttemptCount,
		Retryable:     log.Retryable,
		LastError:     log.LastError,
		LastAttemptAt: log.LastAttemptAt.Format(time.RFC3339),
		Message:       log.Message,
		CreatedAt:     log.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     log.UpdatedAt.Format(time.RFC3339),
	}
	if log.NextRetryAt != nil {
		s := log.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &s
	}
	return resp
}

func toSyncLogResponses(logs []syncdomain.SyncLog) []SyncLogResponse {
	out := make([]SyncLogResponse, len(logs))
	for i := range logs {
		out[i] = toSyncLogResponse(&logs[i])
	}
	return out
}

// EntityStatusResponse represents the health of one entity sync cycle
type EntityStatusResponse struct {
	EntityType          string  `json:"entity_type"`
	Direction           string  `json:"direction"`
	LastSyncAt          *string `json:"last_sync_at,omitempty"`
	LastSuccess         bool    `json:"last_success"`
	LastError           string  `json:"last_error,omitempty"`
	ProcessedCount      int     `json:"processed_count"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	Healthy             bool    `json:"healthy"`
}

// SyncStatusResponse represents the engine-wide health snapshot
type SyncStatusResponse struct {
	Healthy          bool                   `json:"healthy"`
	Entities         []EntityStatusResponse `json:"entities"`
	DeadLetterCount  int                    `json:"dead_letter_count"`
	OldestDeadLetter *string                `json:"oldest_dead_letter,omitempty"`
	FailuresLast24h  int64                  `json:"failures_last_24h"`
	Statistics       *StatisticsResponse    `json:"statistics,omitempty"`
}

func toSyncStatusResponse(status *appsync.SyncStatus) SyncStatusResponse {
	resp := SyncStatusResponse{
		Healthy:         status.Healthy,
		Entities:        make([]EntityStatusResponse, 0, len(status.Entities)),
		DeadLetterCount: status.DeadLetterCount,
		FailuresLast24h: status.FailuresLast24h,
	}
	for _, e := range status.Entities {
		es := EntityStatusResponse{
			EntityType:          e.EntityType.String(),
			Direction:           e.Direction.String(),
			LastSuccess:         e.LastSuccess,
			LastError:           e.LastError,
			ProcessedCount:      e.ProcessedCount,
			ConsecutiveFailures: e.ConsecutiveFailures,
			Healthy:             e.Healthy,
		}
		if e.LastSyncAt != nil {
			s := e.LastSyncAt.Format(time.RFC3339)
			es.LastSyncAt = &s
		}
		resp.Entities = append(resp.Entities, es)
	}
	if status.OldestDeadLetter != nil {
		s := status.OldestDeadLetter.Format(time.RFC3339)
		resp.OldestDeadLetter = &s
	}
	if status.Statistics != nil {
		stats := toStatisticsResponse(status.Statistics)
		resp.Statistics = &stats
	}
	return resp
}

// StatisticsResponse represents aggregate sync log statistics
type StatisticsResponse struct {
	Total        int64            `json:"total"`
	Completed    int64            `json:"completed"`
	Failed       int64            `json:"failed"`
	DeadLetter   int64            `json:"dead_letter"`
	SuccessRate  float64          `json:"success_rate"`
	ByEntityType map[string]int64 `json:"by_entity_type"`
	ByDirection  map[string]int64 `json:"by_direction"`
}

func toStatisticsResponse(stats *syncdomain.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		Total:        stats.Total,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		DeadLetter:   stats.DeadLetter,
		SuccessRate:  stats.SuccessRate,
		ByEntityType: make(map[string]int64, len(stats.ByEntityType)),
		ByDirection:  make(map[string]int64, len(stats.ByDirection)),
	}
	for k, v := range stats.ByEntityType {
		resp.ByEntityType[k.String()] = v
	}
	for k, v := range stats.ByDirection {
		resp.ByDirection[k.String()] = v
	}
	return resp
}

// TriggerResponse acknowledges a manually triggered sync run
type TriggerResponse struct {
	Submitted bool   `json:"submitted"`
	Kind      string `json:"kind"`
}
