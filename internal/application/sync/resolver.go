// Package sync implements the ERP synchronization engine: the conflict
// resolver, the per-entity sync services, the retry sweep and the
// orchestrator that schedulers and admin tooling call into.
package sync

import (
	"sort"

	"github.com/shopspring/decimal"

	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// Strategy names recorded on resolutions for audit
const (
	StrategyStockLastWriteWins = "stock-last-write-wins"
	StrategyPriceERPMaster     = "price-erp-master"
	StrategyPushTargetWins     = "push-target-wins"
	StrategyFirstTimeCreation  = "first-time-creation"
)

// DefaultConflictResolver implements the per-entity-type resolution rules.
// It is a pure decision component: no clock, no stores, no hidden state.
type DefaultConflictResolver struct{}

// NewConflictResolver creates the default resolver
func NewConflictResolver() *DefaultConflictResolver {
	return &DefaultConflictResolver{}
}

// Resolve decides a winner for one item
func (r *DefaultConflictResolver) Resolve(ctx syncdomain.ConflictContext) syncdomain.Resolution {
	// First-time creation: nothing to disagree about
	if len(ctx.Source) == 0 && len(ctx.Target) == 0 {
		return syncdomain.Resolution{
			HadConflict: false,
			Winner:      syncdomain.WinnerTarget,
			Strategy:    StrategyFirstTimeCreation,
			Reason:      "neither side has a value",
		}
	}
	if len(ctx.Target) == 0 {
		return syncdomain.Resolution{
			HadConflict: false,
			Winner:      syncdomain.WinnerSource,
			Strategy:    StrategyFirstTimeCreation,
			Reason:      "no local value, adopting ERP value",
		}
	}
	if len(ctx.Source) == 0 {
		return syncdomain.Resolution{
			HadConflict: false,
			Winner:      syncdomain.WinnerTarget,
			Strategy:    StrategyFirstTimeCreation,
			Reason:      "no ERP value, keeping local value",
		}
	}

	conflicts := diffFields(ctx.Source, ctx.Target)
	if len(conflicts) == 0 {
		return syncdomain.Resolution{
			HadConflict: false,
			Winner:      syncdomain.WinnerTarget,
			Strategy:    strategyFor(ctx.EntityType),
			Reason:      "values already in agreement",
		}
	}

	switch ctx.EntityType {
	case syncdomain.EntityTypeStock:
		return resolveStock(ctx, conflicts)
	case syncdomain.EntityTypePrice:
		return syncdomain.Resolution{
			HadConflict:    true,
			Winner:         syncdomain.WinnerSource,
			Strategy:       StrategyPriceERPMaster,
			Reason:         "ERP is pricing master",
			FieldConflicts: conflicts,
		}
	case syncdomain.EntityTypeOrder, syncdomain.EntityTypeInvoice, syncdomain.EntityTypeCustomer:
		// One-way pushes: a "conflict" only means the record already exists
		// on the ERP side
		return syncdomain.Resolution{
			HadConflict:    true,
			Winner:         syncdomain.WinnerTarget,
			Strategy:       StrategyPushTargetWins,
			Reason:         "already synchronized, push is idempotent",
			FieldConflicts: conflicts,
		}
	default:
		return syncdomain.Resolution{
			HadConflict:    true,
			Winner:         syncdomain.WinnerManualReview,
			Strategy:       "unknown-entity-type",
			Reason:         "no strategy registered for entity type",
			FieldConflicts: conflicts,
		}
	}
}

// resolveStock applies last-write-wins by timestamp; on equal or missing
// timestamps the ERP wins because it reflects point-of-sale truth for
// physical inventory.
func resolveStock(ctx syncdomain.ConflictContext, conflicts []syncdomain.FieldConflict) syncdomain.Resolution {
	res := syncdomain.Resolution{
		HadConflict:    true,
		Strategy:       StrategyStockLastWriteWins,
		FieldConflicts: conflicts,
	}

	switch {
	case ctx.SourceTimestamp == nil && ctx.TargetTimestamp == nil:
		res.Winner = syncdomain.WinnerSource
		res.Reason = "no timestamps, ERP wins as point-of-sale inventory authority"
	case ctx.SourceTimestamp == nil:
		res.Winner = syncdomain.WinnerSource
		res.Reason = "ERP timestamp missing, ERP wins as point-of-sale inventory authority"
	case ctx.TargetTimestamp == nil:
		res.Winner = syncdomain.WinnerSource
		res.Reason = "local timestamp missing, ERP wins as point-of-sale inventory authority"
	case ctx.SourceTimestamp.After(*ctx.TargetTimestamp):
		res.Winner = syncdomain.WinnerSource
		res.Reason = "ERP change is newer"
	case ctx.TargetTimestamp.After(*ctx.SourceTimestamp):
		res.Winner = syncdomain.WinnerTarget
		res.Reason = "local change is newer, a sale likely reserved stock between pulls"
	default:
		res.Winner = syncdomain.WinnerSource
		res.Reason = "timestamps equal, ERP wins as point-of-sale inventory authority"
	}

	return res
}

// diffFields lists every field present on either side whose values disagree.
// Fields are visited in sorted order so resolutions are deterministic.
func diffFields(source, target map[string]syncdomain.FieldValue) []syncdomain.FieldConflict {
	names := make(map[string]struct{}, len(source)+len(target))
	for name := range source {
		names[name] = struct{}{}
	}
	for name := range target {
		names[name] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var conflicts []syncdomain.FieldConflict
	for _, name := range sorted {
		sv, sok := source[name]
		tv, tok := target[name]
		if sok && tok && sv.Raw == tv.Raw {
			continue
		}

		fc := syncdomain.FieldConflict{
			Field:       name,
			SourceValue: sv.Raw,
			TargetValue: tv.Raw,
		}
		if sv.Numeric != nil && tv.Numeric != nil {
			fc.Difference = sv.Numeric.Sub(*tv.Numeric).Abs()
			if !tv.Numeric.IsZero() {
				fc.DifferencePct = fc.Difference.
					Div(tv.Numeric.Abs()).
					Mul(decimal.NewFromInt(100))
			}
		}
		conflicts = append(conflicts, fc)
	}
	return conflicts
}

func strategyFor(entityType syncdomain.EntityType) string {
	switch entityType {
	case syncdomain.EntityTypeStock:
		return StrategyStockLastWriteWins
	case syncdomain.EntityTypePrice:
		return StrategyPriceERPMaster
	default:
		return StrategyPushTargetWins
	}
}

// Ensure DefaultConflictResolver implements ConflictResolver
var _ syncdomain.ConflictResolver = (*DefaultConflictResolver)(nil)
