package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	erpdomain "github.com/shopfront/backend/internal/domain/erp"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB max response

// HTTPClient implements the ERP client port against the ERP REST API.
// Every request is signed with HMAC-SHA256 and carries a bounded timeout so
// one stalled call never blocks a whole sync batch.
type HTTPClient struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewHTTPClient creates a new ERP HTTP client with the given configuration
func NewHTTPClient(config *ClientConfig) (*HTTPClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// ---------------------------------------------------------------------------
// Stock Operations
// ---------------------------------------------------------------------------

// ListStockChanges returns stock records changed at or after since.
// A zero since returns the full stock list.
func (c *HTTPClient) ListStockChanges(ctx context.Context, since time.Time) ([]erpdomain.StockRecord, error) {
	query := url.Values{"warehouse": {c.config.WarehouseCode}}
	if !since.IsZero() {
		query.Set("since", since.UTC().Format(time.RFC3339))
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/stock/changes", query, nil)
	if err != nil {
		return nil, err
	}

	var resp stockListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}

	records := make([]erpdomain.StockRecord, len(resp.Data))
	for i, p := range resp.Data {
		records[i] = erpdomain.StockRecord{
			SKU:           p.SKU,
			WarehouseCode: p.WarehouseCode,
			Quantity:      p.Quantity,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return records, nil
}

// GetStock returns the current stock record for one SKU
func (c *HTTPClient) GetStock(ctx context.Context, sku string) (*erpdomain.StockRecord, error) {
	query := url.Values{"warehouse": {c.config.WarehouseCode}}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/stock/"+url.PathEscape(sku), query, nil)
	if err != nil {
		return nil, err
	}

	var resp stockDetailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}
	if resp.Data == nil {
		return nil, erpdomain.ErrRecordNotFound
	}

	return &erpdomain.StockRecord{
		SKU:           resp.Data.SKU,
		WarehouseCode: resp.Data.WarehouseCode,
		Quantity:      resp.Data.Quantity,
		UpdatedAt:     resp.Data.UpdatedAt,
	}, nil
}

// UpsertStock writes a stock record into the ERP warehouse
func (c *HTTPClient) UpsertStock(ctx context.Context, record erpdomain.StockRecord) error {
	warehouse := record.WarehouseCode
	if warehouse == "" {
		warehouse = c.config.WarehouseCode
	}
	payload := stockPayload{
		SKU:           record.SKU,
		WarehouseCode: warehouse,
		Quantity:      record.Quantity,
		UpdatedAt:     record.UpdatedAt,
	}

	respBody, err := c.doRequest(ctx, http.MethodPut, "/v1/stock", nil, payload)
	if err != nil {
		return err
	}
	return c.checkEnvelope(respBody)
}

// ---------------------------------------------------------------------------
// Price Operations
// ---------------------------------------------------------------------------

// ListPriceChanges returns price records changed at or after since.
// A zero since returns the full price list.
func (c *HTTPClient) ListPriceChanges(ctx context.Context, since time.Time) ([]erpdomain.PriceRecord, error) {
	var query url.Values
	if !since.IsZero() {
		query = url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	}

	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/prices/changes", query, nil)
	if err != nil {
		return nil, err
	}

	var resp priceListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}

	records := make([]erpdomain.PriceRecord, len(resp.Data))
	for i, p := range resp.Data {
		records[i] = erpdomain.PriceRecord{
			SKU:           p.SKU,
			Currency:      p.Currency,
			ListPrice:     p.ListPrice,
			CampaignPrice: p.CampaignPrice,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return records, nil
}

// GetPrice returns the current price record for one SKU
func (c *HTTPClient) GetPrice(ctx context.Context, sku string) (*erpdomain.PriceRecord, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/prices/"+url.PathEscape(sku), nil, nil)
	if err != nil {
		return nil, err
	}

	var resp priceDetailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}
	if resp.Data == nil {
		return nil, erpdomain.ErrRecordNotFound
	}

	return &erpdomain.PriceRecord{
		SKU:           resp.Data.SKU,
		Currency:      resp.Data.Currency,
		ListPrice:     resp.Data.ListPrice,
		CampaignPrice: resp.Data.CampaignPrice,
		UpdatedAt:     resp.Data.UpdatedAt,
	}, nil
}

// UpsertPrice writes a price record into the ERP price list
func (c *HTTPClient) UpsertPrice(ctx context.Context, record erpdomain.PriceRecord) error {
	payload := pricePayload{
		SKU:           record.SKU,
		Currency:      record.Currency,
		ListPrice:     record.ListPrice,
		CampaignPrice: record.CampaignPrice,
		UpdatedAt:     record.UpdatedAt,
	}

	respBody, err := c.doRequest(ctx, http.MethodPut, "/v1/prices", nil, payload)
	if err != nil {
		return err
	}
	return c.checkEnvelope(respBody)
}

// ---------------------------------------------------------------------------
// Ledger Account Operations
// ---------------------------------------------------------------------------

// UpsertLedgerAccount creates or updates a customer ledger account
func (c *HTTPClient) UpsertLedgerAccount(ctx context.Context, account erpdomain.LedgerAccount) error {
	payload := accountPayload{
		Code:  account.Code,
		Name:  account.Name,
		Email: account.Email,
		Phone: account.Phone,
	}

	respBody, err := c.doRequest(ctx, http.MethodPut, "/v1/accounts", nil, payload)
	if err != nil {
		return err
	}
	return c.checkEnvelope(respBody)
}

// GetLedgerAccount fetches a ledger account by code
func (c *HTTPClient) GetLedgerAccount(ctx context.Context, code string) (*erpdomain.LedgerAccount, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(code), nil, nil)
	if err != nil {
		return nil, err
	}

	var resp accountDetailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}
	if resp.Data == nil {
		return nil, erpdomain.ErrRecordNotFound
	}

	return &erpdomain.LedgerAccount{
		Code:  resp.Data.Code,
		Name:  resp.Data.Name,
		Email: resp.Data.Email,
		Phone: resp.Data.Phone,
	}, nil
}

// ---------------------------------------------------------------------------
// Order and Invoice Operations
// ---------------------------------------------------------------------------

// CreateOrder transmits an order and returns the ERP order reference
func (c *HTTPClient) CreateOrder(ctx context.Context, order erpdomain.OrderDocument) (string, error) {
	payload := orderPayload{
		OrderNumber: order.OrderNumber,
		AccountCode: order.AccountCode,
		Lines:       toLinePayloads(order.Lines),
		Total:       order.Total,
		Currency:    order.Currency,
		ConfirmedAt: order.ConfirmedAt,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v1/orders", nil, payload)
	if err != nil {
		return "", err
	}

	var resp orderCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return "", c.businessError(resp.envelope)
	}
	if resp.Data == nil || resp.Data.OrderRef == "" {
		return "", fmt.Errorf("%w: order reference missing", erpdomain.ErrInvalidResponse)
	}
	return resp.Data.OrderRef, nil
}

// CreateInvoice issues an invoice and returns the ERP invoice reference
func (c *HTTPClient) CreateInvoice(ctx context.Context, invoice erpdomain.InvoiceDocument) (string, error) {
	payload := invoicePayload{
		OrderRef: invoice.OrderRef,
		Kind:     string(invoice.Kind),
		Lines:    toLinePayloads(invoice.Lines),
		Total:    invoice.Total,
		Currency: invoice.Currency,
		IssuedAt: invoice.IssuedAt,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v1/invoices", nil, payload)
	if err != nil {
		return "", err
	}

	var resp invoiceCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return "", c.businessError(resp.envelope)
	}
	if resp.Data == nil || resp.Data.InvoiceRef == "" {
		return "", fmt.Errorf("%w: invoice reference missing", erpdomain.ErrInvalidResponse)
	}
	return resp.Data.InvoiceRef, nil
}

// GetInvoiceForOrder returns the invoice issued for an ERP order
func (c *HTTPClient) GetInvoiceForOrder(ctx context.Context, orderRef string) (*erpdomain.InvoiceDocument, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderRef)+"/invoice", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp invoiceDetailResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return nil, c.businessError(resp.envelope)
	}
	if resp.Data == nil {
		return nil, erpdomain.ErrRecordNotFound
	}

	lines := make([]erpdomain.OrderLine, len(resp.Data.Lines))
	for i, l := range resp.Data.Lines {
		lines[i] = erpdomain.OrderLine{
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}

	return &erpdomain.InvoiceDocument{
		OrderRef:   resp.Data.OrderRef,
		InvoiceRef: resp.Data.InvoiceRef,
		Kind:       erpdomain.InvoiceKind(resp.Data.Kind),
		Lines:      lines,
		Total:      resp.Data.Total,
		Currency:   resp.Data.Currency,
		IssuedAt:   resp.Data.IssuedAt,
	}, nil
}

// Ping verifies connectivity and credentials
func (c *HTTPClient) Ping(ctx context.Context) error {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/v1/ping", nil, nil)
	if err != nil {
		return err
	}
	return c.checkEnvelope(respBody)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doRequest executes one signed request and returns the raw response body.
// Transport and HTTP-level failures are mapped onto the domain error set so
// callers can classify without knowing the wire protocol.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("erp: failed to marshal request: %w", err)
		}
	}

	fullURL := c.config.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create request: %w", err)
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)
	req.Header.Set("X-Timestamp", timestamp)
	req.Header.Set("X-Signature", c.config.Sign(method, path, timestamp, bodyBytes))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", erpdomain.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", erpdomain.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", erpdomain.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", erpdomain.ErrUnavailable, resp.StatusCode)
	}

	return respBody, nil
}

// checkEnvelope parses a bare envelope response and maps its business code
func (c *HTTPClient) checkEnvelope(respBody []byte) error {
	var resp envelope
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: %v", erpdomain.ErrInvalidResponse, err)
	}
	if !resp.IsSuccess() {
		return c.businessError(resp)
	}
	return nil
}

// businessError maps an ERP business result code onto the domain error set
func (c *HTTPClient) businessError(e envelope) error {
	switch e.Code {
	case codeRecordNotFound:
		return fmt.Errorf("%w: %s", erpdomain.ErrRecordNotFound, e.Message)
	case codeRejected:
		return fmt.Errorf("%w: %s", erpdomain.ErrRejected, e.Message)
	case codeDuplicateInvoice:
		return fmt.Errorf("%w: %s", erpdomain.ErrDuplicateInvoice, e.Message)
	case codeAuthFailed:
		return fmt.Errorf("%w: %s", erpdomain.ErrAuthFailed, e.Message)
	default:
		return fmt.Errorf("%w: %d - %s", erpdomain.ErrRejected, e.Code, e.Message)
	}
}

func toLinePayloads(lines []erpdomain.OrderLine) []linePayload {
	payloads := make([]linePayload, len(lines))
	for i, l := range lines {
		payloads[i] = linePayload{
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
	}
	return payloads
}

// Ensure HTTPClient implements the ERP client port
var _ erpdomain.Client = (*HTTPClient)(nil)
