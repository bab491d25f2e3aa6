package erp

import (
	"time"

	"github.com/shopspring/decimal"
)

// Business result codes returned in the ERP response envelope
const (
	codeOK               = 0
	codeRecordNotFound   = 1001
	codeRejected         = 1002
	codeDuplicateInvoice = 1003
	codeAuthFailed       = 1004
)

// envelope is the common ERP response wrapper
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IsSuccess reports whether the ERP accepted the request
func (e *envelope) IsSuccess() bool {
	return e.Code == codeOK
}

// stockPayload is a stock record on the wire
type stockPayload struct {
	SKU           string          `json:"sku"`
	WarehouseCode string          `json:"warehouse_code"`
	Quantity      decimal.Decimal `json:"quantity"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type stockListResponse struct {
	envelope
	Data []stockPayload `json:"data"`
}

type stockDetailResponse struct {
	envelope
	Data *stockPayload `json:"data"`
}

// pricePayload is a price record on the wire
type pricePayload struct {
	SKU           string           `json:"sku"`
	Currency      string           `json:"currency"`
	ListPrice     decimal.Decimal  `json:"list_price"`
	CampaignPrice *decimal.Decimal `json:"campaign_price,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type priceListResponse struct {
	envelope
	Data []pricePayload `json:"data"`
}

type priceDetailResponse struct {
	envelope
	Data *pricePayload `json:"data"`
}

// accountPayload is a ledger account on the wire
type accountPayload struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type accountDetailResponse struct {
	envelope
	Data *accountPayload `json:"data"`
}

// linePayload is one document line on the wire
type linePayload struct {
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// orderPayload is an order document on the wire
type orderPayload struct {
	OrderNumber string          `json:"order_number"`
	AccountCode string          `json:"account_code"`
	Lines       []linePayload   `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	Currency    string          `json:"currency"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

type orderCreateResponse struct {
	envelope
	Data *struct {
		OrderRef string `json:"order_ref"`
	} `json:"data"`
}

// invoicePayload is an invoice document on the wire
type invoicePayload struct {
	OrderRef   string          `json:"order_ref"`
	InvoiceRef string          `json:"invoice_ref,omitempty"`
	Kind       string          `json:"kind"`
	Lines      []linePayload   `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
	IssuedAt   time.Time       `json:"issued_at"`
}

type invoiceCreateResponse struct {
	envelope
	Data *struct {
		InvoiceRef string `json:"invoice_ref"`
	} `json:"data"`
}

type invoiceDetailResponse struct {
	envelope
	Data *invoicePayload `json:"data"`
}
