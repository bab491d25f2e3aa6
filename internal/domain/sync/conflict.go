package sync

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Conflict Resolution Types
// ---------------------------------------------------------------------------

// FieldValue is one field of an entity snapshot as seen by one side.
// Numeric is set for quantities and amounts so conflicts can report deltas.
type FieldValue struct {
	Raw     string
	Numeric *decimal.Decimal
}

// NewDecimalField builds a numeric field value
func NewDecimalField(d decimal.Decimal) FieldValue {
	return FieldValue{Raw: d.String(), Numeric: &d}
}

// NewStringField builds a plain text field value
func NewStringField(s string) FieldValue {
	return FieldValue{Raw: s}
}

// ConflictContext carries everything the resolver needs for one item.
// Source is the ERP-side snapshot, Target the storefront-side snapshot.
// Either side may be nil for first-time creation. Ephemeral, never persisted.
type ConflictContext struct {
	EntityType EntityType
	EntityID   string
	Source     map[string]FieldValue
	Target     map[string]FieldValue
	// SourceTimestamp is when the ERP last changed the record, if known
	SourceTimestamp *time.Time
	// TargetTimestamp is when the storefront last changed the record, if known
	TargetTimestamp *time.Time
}

// Winner identifies which side's value is applied
type Winner string

const (
	// WinnerSource applies the ERP value
	WinnerSource Winner = "SOURCE"
	// WinnerTarget keeps the storefront value
	WinnerTarget Winner = "TARGET"
	// WinnerMerged applies a combination of both sides
	WinnerMerged Winner = "MERGED"
	// WinnerManualReview pauses the item until an operator decides
	WinnerManualReview Winner = "MANUAL_REVIEW"
)

// FieldConflict records one disagreeing field for the audit trail
type FieldConflict struct {
	Field       string
	SourceValue string
	TargetValue string
	// Difference is the absolute numeric delta; zero for non-numeric fields
	Difference decimal.Decimal
	// DifferencePct is the delta relative to the target value, in percent;
	// zero when the target value is zero or the field is non-numeric
	DifferencePct decimal.Decimal
}

// String renders the conflict for the sync log message
func (f FieldConflict) String() string {
	if f.Difference.IsZero() && f.DifferencePct.IsZero() {
		return fmt.Sprintf("%s: source=%q target=%q", f.Field, f.SourceValue, f.TargetValue)
	}
	return fmt.Sprintf("%s: source=%s target=%s diff=%s (%s%%)",
		f.Field, f.SourceValue, f.TargetValue, f.Difference.String(), f.DifferencePct.StringFixed(2))
}

// Resolution is the resolver's decision for one item
type Resolution struct {
	// HadConflict is false for first-time creation and identical values
	HadConflict bool
	Winner      Winner
	// Strategy names the rule that decided, e.g. "stock-last-write-wins"
	Strategy string
	// Reason is the human readable explanation persisted for audit
	Reason string
	// FieldConflicts lists every disagreeing field
	FieldConflicts []FieldConflict
}

// Detail renders the resolution for persistence in the sync log
func (r Resolution) Detail() string {
	s := fmt.Sprintf("strategy=%s winner=%s reason=%s", r.Strategy, r.Winner, r.Reason)
	for _, fc := range r.FieldConflicts {
		s += "\n  " + fc.String()
	}
	return s
}

// ConflictResolver decides a winner for conflicting values. Implementations
// must be pure: identical contexts yield identical resolutions.
type ConflictResolver interface {
	Resolve(ctx ConflictContext) Resolution
}
