package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shopfront/backend/internal/domain/erp"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

type priceTestEnv struct {
	erp     *fakeERP
	catalog *fakeCatalog
	states  *memStateRepo
	logs    *memLogRepo
	service *PriceSyncService
}

func newPriceTestEnv(t *testing.T) *priceTestEnv {
	t.Helper()
	env := &priceTestEnv{
		erp:     newFakeERP(),
		catalog: newFakeCatalog(),
		states:  newMemStateRepo(),
		logs:    newMemLogRepo(),
	}
	logger := zaptest.NewLogger(t)
	oplog := NewSyncLogger(env.logs, CalculateNextRetryDelay, logger)
	env.service = NewPriceSyncService(env.erp, env.catalog, env.states, oplog, NewConflictResolver(), NewKeyedGuard(), logger)
	return env
}

func (env *priceTestEnv) addPrice(sku string, price float64, campaign *decimal.Decimal, updatedAt time.Time) uuid.UUID {
	id := uuid.New()
	env.catalog.prices[sku] = &syncdomain.LocalPrice{
		ProductID:     id,
		SKU:           sku,
		Price:         decimal.NewFromFloat(price),
		Currency:      "TRY",
		CampaignPrice: campaign,
		UpdatedAt:     updatedAt,
	}
	return id
}

func TestPriceSyncPullERPAlwaysWins(t *testing.T) {
	env := newPriceTestEnv(t)
	// A local edit newer than the ERP record still loses: the ERP owns
	// list prices.
	productID := env.addPrice("SKU-1", 100, nil, time.Now())
	env.erp.prices = []erp.PriceRecord{
		{SKU: "SKU-1", Currency: "TRY", ListPrice: decimal.NewFromInt(80), UpdatedAt: time.Now().Add(-time.Hour)},
	}

	result := env.service.SyncAllFromERP(context.Background())

	assert.Equal(t, 1, result.SuccessCount)
	require.Contains(t, env.catalog.setPrices, productID)
	assert.True(t, env.catalog.setPrices[productID].Equal(decimal.NewFromInt(80)))
}

func TestPriceSyncPullSkipsWriteWhenPricesAgree(t *testing.T) {
	env := newPriceTestEnv(t)
	env.addPrice("SKU-1", 100, nil, time.Now())
	env.erp.prices = []erp.PriceRecord{
		{SKU: "SKU-1", Currency: "TRY", ListPrice: decimal.NewFromInt(100), UpdatedAt: time.Now()},
	}

	result := env.service.SyncAllFromERP(context.Background())

	assert.Equal(t, 1, result.SuccessCount)
	assert.Empty(t, env.catalog.setPrices)
}

func TestPriceSyncPullUnknownSKUFailsValidation(t *testing.T) {
	env := newPriceTestEnv(t)
	env.erp.prices = []erp.PriceRecord{
		{SKU: "GHOST", ListPrice: decimal.NewFromInt(5), UpdatedAt: time.Now()},
	}

	result := env.service.SyncAllFromERP(context.Background())

	assert.Equal(t, 1, result.FailedCount)
}

func TestPriceSyncPullListErrorFailsCycle(t *testing.T) {
	env := newPriceTestEnv(t)
	env.erp.listPriceErr = erp.ErrUnavailable

	result := env.service.SyncAllFromERP(context.Background())
	assert.False(t, result.Ok())

	state, err := env.states.Find(context.Background(), syncdomain.EntityTypePrice, syncdomain.DirectionFromERP)
	require.NoError(t, err)
	assert.Equal(t, 1, state.ConsecutiveFailures)
}

func TestPushCampaignPricesToERP(t *testing.T) {
	env := newPriceTestEnv(t)
	campaign := decimal.NewFromInt(75)
	env.addPrice("SKU-1", 100, &campaign, time.Now())
	env.addPrice("SKU-2", 50, nil, time.Now())

	result := env.service.PushCampaignPricesToERP(context.Background())

	assert.Equal(t, 1, result.SuccessCount, "only SKUs with an active campaign are pushed")
	require.Len(t, env.erp.pushedPrices, 1)
	pushed := env.erp.pushedPrices[0]
	assert.Equal(t, "SKU-1", pushed.SKU)
	require.NotNil(t, pushed.CampaignPrice)
	assert.True(t, pushed.CampaignPrice.Equal(campaign))
	assert.True(t, pushed.ListPrice.Equal(decimal.NewFromInt(100)))
}

func TestPushPriceToERPWithoutCampaignFails(t *testing.T) {
	env := newPriceTestEnv(t)
	productID := env.addPrice("SKU-1", 100, nil, time.Now())

	result := env.service.PushPriceToERP(context.Background(), productID)

	assert.Equal(t, 1, result.FailedCount)
	assert.Empty(t, env.erp.pushedPrices)
}

func TestPushPriceToERPSingleProduct(t *testing.T) {
	env := newPriceTestEnv(t)
	campaign := decimal.NewFromInt(60)
	productID := env.addPrice("SKU-1", 100, &campaign, time.Now())
	other := decimal.NewFromInt(30)
	env.addPrice("SKU-2", 40, &other, time.Now())

	result := env.service.PushPriceToERP(context.Background(), productID)

	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, env.erp.pushedPrices, 1)
	assert.Equal(t, "SKU-1", env.erp.pushedPrices[0].SKU)
}

func TestPriceRetryItemPullDirection(t *testing.T) {
	env := newPriceTestEnv(t)
	productID := env.addPrice("SKU-1", 100, nil, time.Now())
	env.erp.prices = []erp.PriceRecord{
		{SKU: "SKU-1", ListPrice: decimal.NewFromInt(90), UpdatedAt: time.Now()},
	}

	log, err := syncdomain.NewSyncLog(syncdomain.EntityTypePrice, syncdomain.DirectionFromERP, "SKU-1", "")
	require.NoError(t, err)

	require.NoError(t, env.service.RetryItem(context.Background(), log))
	require.Contains(t, env.catalog.setPrices, productID)
	assert.True(t, env.catalog.setPrices[productID].Equal(decimal.NewFromInt(90)))
}

func TestPriceRetryItemPushDirection(t *testing.T) {
	env := newPriceTestEnv(t)
	campaign := decimal.NewFromInt(45)
	productID := env.addPrice("SKU-1", 55, &campaign, time.Now())

	log, err := syncdomain.NewSyncLog(syncdomain.EntityTypePrice, syncdomain.DirectionToERP, "SKU-1", productID.String())
	require.NoError(t, err)

	require.NoError(t, env.service.RetryItem(context.Background(), log))
	assert.Len(t, env.erp.pushedPrices, 1)
}

func TestPriceRetryItemUnknownSKU(t *testing.T) {
	env := newPriceTestEnv(t)

	log, err := syncdomain.NewSyncLog(syncdomain.EntityTypePrice, syncdomain.DirectionToERP, "GHOST", uuid.NewString())
	require.NoError(t, err)

	err = env.service.RetryItem(context.Background(), log)
	assert.True(t, errors.Is(err, syncdomain.ErrValidation))
}
