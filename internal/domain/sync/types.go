// Package sync contains the domain model of the ERP synchronization engine:
// sync watermarks, the per-item sync log, conflict resolution contracts and
// the repository interfaces the engine is built on.
package sync

// ---------------------------------------------------------------------------
// Entity Types
// ---------------------------------------------------------------------------

// EntityType identifies which domain entity a sync operation covers
type EntityType string

const (
	// EntityTypeStock covers product stock quantities
	EntityTypeStock EntityType = "STOCK"
	// EntityTypePrice covers catalog prices
	EntityTypePrice EntityType = "PRICE"
	// EntityTypeCustomer covers customer to ledger account mappings
	EntityTypeCustomer EntityType = "CUSTOMER"
	// EntityTypeOrder covers confirmed sales orders
	EntityTypeOrder EntityType = "ORDER"
	// EntityTypeInvoice covers invoices issued against orders
	EntityTypeInvoice EntityType = "INVOICE"
)

// AllEntityTypes returns every entity type handled by the engine
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityTypeStock,
		EntityTypePrice,
		EntityTypeCustomer,
		EntityTypeOrder,
		EntityTypeInvoice,
	}
}

// IsValid returns true if the entity type is valid
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeStock, EntityTypePrice, EntityTypeCustomer, EntityTypeOrder, EntityTypeInvoice:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Sync Direction
// ---------------------------------------------------------------------------

// Direction indicates which system the data flows towards
type Direction string

const (
	// DirectionToERP indicates data is pushed from the storefront to the ERP
	DirectionToERP Direction = "TO_ERP"
	// DirectionFromERP indicates data is pulled from the ERP into the storefront
	DirectionFromERP Direction = "FROM_ERP"
)

// IsValid returns true if the direction is valid
func (d Direction) IsValid() bool {
	switch d {
	case DirectionToERP, DirectionFromERP:
		return true
	default:
		return false
	}
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// ---------------------------------------------------------------------------
// Sync Status
// ---------------------------------------------------------------------------

// Status is the lifecycle state of a sync log entry
type Status string

const (
	// StatusPending indicates the item is queued for (re)processing
	StatusPending Status = "PENDING"
	// StatusInProgress indicates an attempt is currently running
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the item synchronized successfully
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the last attempt failed
	StatusFailed Status = "FAILED"
	// StatusDeadLetter indicates the item exhausted its retry budget or was
	// rejected outright and needs manual intervention
	StatusDeadLetter Status = "DEAD_LETTER"
)

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusDeadLetter:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further automatic transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDeadLetter
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}
