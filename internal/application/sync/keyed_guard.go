package sync

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// KeyedGuard serializes work per (entity type, identifier) key. Entity sync
// services run concurrently with each other, but two attempts on the same
// entity instance must never be in flight at once; concurrent duplicates
// collapse into the first call's result.
type KeyedGuard struct {
	group singleflight.Group
}

// NewKeyedGuard creates a new guard
func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{}
}

// Do runs fn under the item's key. A concurrent call with the same key waits
// for and shares the first call's outcome instead of running fn again.
func (g *KeyedGuard) Do(entityType syncdomain.EntityType, id string, fn func() error) error {
	key := fmt.Sprintf("%s:%s", entityType, id)
	_, err, _ := g.group.Do(key, func() (any, error) {
		return nil, fn()
	})
	return err
}
