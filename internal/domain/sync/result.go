package sync

import "time"

// ---------------------------------------------------------------------------
// SyncResult
// ---------------------------------------------------------------------------

// ItemError is one failed item inside a sync cycle
type ItemError struct {
	EntityType EntityType `json:"entity_type"`
	ItemID     string     `json:"item_id"`
	Message    string     `json:"message"`
}

// Result is the uniform outcome every entity sync service returns. Expected
// failures are collected here instead of crossing the service boundary as
// errors; only programming errors escape as errors.
type Result struct {
	EntityType     EntityType  `json:"entity_type,omitempty"`
	Direction      Direction   `json:"direction,omitempty"`
	ProcessedCount int         `json:"processed_count"`
	SuccessCount   int         `json:"success_count"`
	FailedCount    int         `json:"failed_count"`
	SkippedCount   int         `json:"skipped_count"`
	Warnings       []string    `json:"warnings,omitempty"`
	Errors         []ItemError `json:"errors,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// NewResult opens a result for a cycle
func NewResult(entityType EntityType, direction Direction) *Result {
	return &Result{
		EntityType: entityType,
		Direction:  direction,
		StartedAt:  time.Now(),
	}
}

// RecordSuccess counts one successfully synced item
func (r *Result) RecordSuccess() {
	r.ProcessedCount++
	r.SuccessCount++
}

// RecordSkip counts one item that needed no work
func (r *Result) RecordSkip() {
	r.ProcessedCount++
	r.SkippedCount++
}

// RecordFailure counts one failed item
func (r *Result) RecordFailure(itemID string, err error) {
	r.ProcessedCount++
	r.FailedCount++
	r.Errors = append(r.Errors, ItemError{
		EntityType: r.EntityType,
		ItemID:     itemID,
		Message:    err.Error(),
	})
}

// AddWarning records a non-fatal observation
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Finish stamps the completion time and returns the result
func (r *Result) Finish() *Result {
	r.CompletedAt = time.Now()
	return r
}

// Ok reports whether the cycle had no failed items
func (r *Result) Ok() bool {
	return r.FailedCount == 0
}

// Merge folds another result into an aggregate
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.ProcessedCount += other.ProcessedCount
	r.SuccessCount += other.SuccessCount
	r.FailedCount += other.FailedCount
	r.SkippedCount += other.SkippedCount
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
	if r.CompletedAt.Before(other.CompletedAt) {
		r.CompletedAt = other.CompletedAt
	}
}
