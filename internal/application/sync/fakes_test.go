package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopfront/backend/internal/domain/erp"
	"github.com/shopfront/backend/internal/domain/shared"
	syncdomain "github.com/shopfront/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// ERP client fake
// ---------------------------------------------------------------------------

// fakeERP is a configurable in-memory erp.Client
type fakeERP struct {
	mu sync.Mutex

	stocks []erp.StockRecord
	prices []erp.PriceRecord

	listStockErr  error
	listPriceErr  error
	upsertErr     error
	ledgerErr     error
	createOrdErr  error
	createInvErr  error
	nextOrderRef  string
	nextInvRef    string
	pushedStocks  []erp.StockRecord
	pushedPrices  []erp.PriceRecord
	ledgerUpserts []erp.LedgerAccount
	createdOrders []erp.OrderDocument
	createdInvs   []erp.InvoiceDocument
	invoices      map[string]*erp.InvoiceDocument

	// invoiceLookupMisses makes GetInvoiceForOrder report not-found that
	// many times before consulting the invoices map
	invoiceLookupMisses int
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		nextOrderRef: "ERP-ORD-1",
		nextInvRef:   "ERP-INV-1",
		invoices:     make(map[string]*erp.InvoiceDocument),
	}
}

func (f *fakeERP) ListStockChanges(ctx context.Context, since time.Time) ([]erp.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listStockErr != nil {
		return nil, f.listStockErr
	}
	if since.IsZero() {
		return f.stocks, nil
	}
	var out []erp.StockRecord
	for _, r := range f.stocks {
		if !r.UpdatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeERP) ListPriceChanges(ctx context.Context, since time.Time) ([]erp.PriceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listPriceErr != nil {
		return nil, f.listPriceErr
	}
	if since.IsZero() {
		return f.prices, nil
	}
	var out []erp.PriceRecord
	for _, r := range f.prices {
		if !r.UpdatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeERP) GetStock(ctx context.Context, sku string) (*erp.StockRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.stocks {
		if f.stocks[i].SKU == sku {
			return &f.stocks[i], nil
		}
	}
	return nil, erp.ErrRecordNotFound
}

func (f *fakeERP) GetPrice(ctx context.Context, sku string) (*erp.PriceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.prices {
		if f.prices[i].SKU == sku {
			return &f.prices[i], nil
		}
	}
	return nil, erp.ErrRecordNotFound
}

func (f *fakeERP) UpsertStock(ctx context.Context, record erp.StockRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.pushedStocks = append(f.pushedStocks, record)
	return nil
}

func (f *fakeERP) UpsertPrice(ctx context.Context, record erp.PriceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.pushedPrices = append(f.pushedPrices, record)
	return nil
}

func (f *fakeERP) UpsertLedgerAccount(ctx context.Context, account erp.LedgerAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledgerErr != nil {
		return f.ledgerErr
	}
	f.ledgerUpserts = append(f.ledgerUpserts, account)
	return nil
}

func (f *fakeERP) GetLedgerAccount(ctx context.Context, code string) (*erp.LedgerAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.ledgerUpserts {
		if f.ledgerUpserts[i].Code == code {
			return &f.ledgerUpserts[i], nil
		}
	}
	return nil, erp.ErrRecordNotFound
}

func (f *fakeERP) CreateOrder(ctx context.Context, order erp.OrderDocument) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrdErr != nil {
		return "", f.createOrdErr
	}
	f.createdOrders = append(f.createdOrders, order)
	return fmt.Sprintf("%s-%d", f.nextOrderRef, len(f.createdOrders)), nil
}

func (f *fakeERP) CreateInvoice(ctx context.Context, invoice erp.InvoiceDocument) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createInvErr != nil {
		return "", f.createInvErr
	}
	f.createdInvs = append(f.createdInvs, invoice)
	ref := fmt.Sprintf("%s-%d", f.nextInvRef, len(f.createdInvs))
	issued := invoice
	issued.InvoiceRef = ref
	f.invoices[invoice.OrderRef] = &issued
	return ref, nil
}

func (f *fakeERP) GetInvoiceForOrder(ctx context.Context, orderRef string) (*erp.InvoiceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invoiceLookupMisses > 0 {
		f.invoiceLookupMisses--
		return nil, erp.ErrRecordNotFound
	}
	if inv, ok := f.invoices[orderRef]; ok {
		return inv, nil
	}
	return nil, erp.ErrRecordNotFound
}

func (f *fakeERP) Ping(ctx context.Context) error { return nil }

var _ erp.Client = (*fakeERP)(nil)

// ---------------------------------------------------------------------------
// Catalog fake
// ---------------------------------------------------------------------------

type fakeCatalog struct {
	mu sync.Mutex

	stocks map[string]*syncdomain.LocalStock
	prices map[string]*syncdomain.LocalPrice

	setStockErr error
	setPriceErr error
	setStocks   map[uuid.UUID]decimal.Decimal
	setPrices   map[uuid.UUID]decimal.Decimal
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		stocks:    make(map[string]*syncdomain.LocalStock),
		prices:    make(map[string]*syncdomain.LocalPrice),
		setStocks: make(map[uuid.UUID]decimal.Decimal),
		setPrices: make(map[uuid.UUID]decimal.Decimal),
	}
}

func (c *fakeCatalog) addStock(sku string, qty int64, updatedAt time.Time) uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.New()
	c.stocks[sku] = &syncdomain.LocalStock{
		ProductID: id,
		SKU:       sku,
		Quantity:  decimal.NewFromInt(qty),
		UpdatedAt: updatedAt,
	}
	return id
}

func (c *fakeCatalog) GetStockBySKU(ctx context.Context, sku string) (*syncdomain.LocalStock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stocks[sku]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (c *fakeCatalog) GetStockByProductID(ctx context.Context, productID uuid.UUID) (*syncdomain.LocalStock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.stocks {
		if s.ProductID == productID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (c *fakeCatalog) ListStocks(ctx context.Context) ([]syncdomain.LocalStock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []syncdomain.LocalStock
	for _, s := range c.stocks {
		out = append(out, *s)
	}
	return out, nil
}

func (c *fakeCatalog) SetStock(ctx context.Context, productID uuid.UUID, quantity decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setStockErr != nil {
		return c.setStockErr
	}
	c.setStocks[productID] = quantity
	for _, s := range c.stocks {
		if s.ProductID == productID {
			s.Quantity = quantity
			s.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (c *fakeCatalog) GetPriceBySKU(ctx context.Context, sku string) (*syncdomain.LocalPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.prices[sku]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (c *fakeCatalog) SetPrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setPriceErr != nil {
		return c.setPriceErr
	}
	c.setPrices[productID] = price
	for _, p := range c.prices {
		if p.ProductID == productID {
			p.Price = price
			p.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (c *fakeCatalog) ListCampaignPrices(ctx context.Context) ([]syncdomain.LocalPrice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []syncdomain.LocalPrice
	for _, p := range c.prices {
		if p.CampaignPrice != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

var _ syncdomain.ProductCatalog = (*fakeCatalog)(nil)

// ---------------------------------------------------------------------------
// State and mapping repo fakes
// ---------------------------------------------------------------------------

type stateKey struct {
	entityType syncdomain.EntityType
	direction  syncdomain.Direction
}

type memStateRepo struct {
	mu     sync.Mutex
	states map[stateKey]*syncdomain.SyncState
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[stateKey]*syncdomain.SyncState)}
}

func (r *memStateRepo) Upsert(ctx context.Context, state *syncdomain.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	r.states[stateKey{state.EntityType, state.Direction}] = &copied
	return nil
}

func (r *memStateRepo) Find(ctx context.Context, entityType syncdomain.EntityType, direction syncdomain.Direction) (*syncdomain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[stateKey{entityType, direction}]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, syncdomain.ErrStateNotFound
}

func (r *memStateRepo) FindAll(ctx context.Context) ([]syncdomain.SyncState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []syncdomain.SyncState
	for _, s := range r.states {
		out = append(out, *s)
	}
	return out, nil
}

var _ syncdomain.SyncStateRepository = (*memStateRepo)(nil)

type memMappingRepo struct {
	mu       sync.Mutex
	mappings map[string]*syncdomain.ExternalMapping
	saveErr  error
}

func newMemMappingRepo() *memMappingRepo {
	return &memMappingRepo{mappings: make(map[string]*syncdomain.ExternalMapping)}
}

func mappingKey(entityType syncdomain.EntityType, internalID string) string {
	return string(entityType) + ":" + internalID
}

func (r *memMappingRepo) Save(ctx context.Context, mapping *syncdomain.ExternalMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *mapping
	r.mappings[mappingKey(mapping.EntityType, mapping.InternalID)] = &copied
	return nil
}

func (r *memMappingRepo) FindByInternalID(ctx context.Context, entityType syncdomain.EntityType, internalID string) (*syncdomain.ExternalMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.mappings[mappingKey(entityType, internalID)]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, syncdomain.ErrMappingNotFound
}

func (r *memMappingRepo) FindByExternalCode(ctx context.Context, entityType syncdomain.EntityType, externalCode string) (*syncdomain.ExternalMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mappings {
		if m.EntityType == entityType && m.ExternalCode == externalCode {
			copied := *m
			return &copied, nil
		}
	}
	return nil, syncdomain.ErrMappingNotFound
}

func (r *memMappingRepo) Exists(ctx context.Context, entityType syncdomain.EntityType, internalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.mappings[mappingKey(entityType, internalID)]
	return ok, nil
}

func (r *memMappingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, m := range r.mappings {
		if m.ID == id {
			delete(r.mappings, k)
			return nil
		}
	}
	return syncdomain.ErrMappingNotFound
}

var _ syncdomain.ExternalMappingRepository = (*memMappingRepo)(nil)

// ---------------------------------------------------------------------------
// Directory and order book fakes
// ---------------------------------------------------------------------------

type fakeDirectory struct {
	mu    sync.Mutex
	users map[uuid.UUID]*syncdomain.LocalUser
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[uuid.UUID]*syncdomain.LocalUser)}
}

func (d *fakeDirectory) addUser(name, email string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.users[id] = &syncdomain.LocalUser{ID: id, Name: name, Email: email}
	return id
}

func (d *fakeDirectory) GetUser(ctx context.Context, userID uuid.UUID) (*syncdomain.LocalUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (d *fakeDirectory) ListUsers(ctx context.Context) ([]syncdomain.LocalUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []syncdomain.LocalUser
	for _, u := range d.users {
		out = append(out, *u)
	}
	return out, nil
}

var _ syncdomain.CustomerDirectory = (*fakeDirectory)(nil)

type fakeOrderBook struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*syncdomain.LocalOrder
}

func newFakeOrderBook() *fakeOrderBook {
	return &fakeOrderBook{orders: make(map[uuid.UUID]*syncdomain.LocalOrder)}
}

func (b *fakeOrderBook) addConfirmedOrder(number string, userID uuid.UUID, confirmedAt time.Time) uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	b.orders[id] = &syncdomain.LocalOrder{
		ID:     id,
		Number: number,
		UserID: userID,
		Lines: []syncdomain.LocalOrderLine{
			{SKU: "SKU-1", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(9.95)},
		},
		Total:       decimal.NewFromFloat(19.90),
		Currency:    "TRY",
		ConfirmedAt: &confirmedAt,
	}
	return id
}

func (b *fakeOrderBook) GetOrder(ctx context.Context, orderID uuid.UUID) (*syncdomain.LocalOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.orders[orderID]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (b *fakeOrderBook) ListConfirmedSince(ctx context.Context, t time.Time) ([]syncdomain.LocalOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []syncdomain.LocalOrder
	for _, o := range b.orders {
		if o.ConfirmedAt == nil {
			continue
		}
		if t.IsZero() || !o.ConfirmedAt.Before(t) {
			out = append(out, *o)
		}
	}
	return out, nil
}

var _ syncdomain.OrderBook = (*fakeOrderBook)(nil)
