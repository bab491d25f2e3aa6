package erp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ClientConfig holds configuration for the ERP HTTP API
type ClientConfig struct {
	// BaseURL is the root of the ERP REST API
	BaseURL string
	// APIKey identifies this integration to the ERP
	APIKey string
	// APISecret signs every request
	APISecret string
	// WarehouseCode scopes stock operations to one ERP warehouse
	WarehouseCode string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Errors for ERP client configuration
var (
	ErrConfigMissingBaseURL   = errors.New("erp: base URL is required")
	ErrConfigMissingAPIKey    = errors.New("erp: API key is required")
	ErrConfigMissingAPISecret = errors.New("erp: API secret is required")
)

// NewClientConfig creates a new ERP client configuration with defaults
func NewClientConfig(baseURL, apiKey, apiSecret string) *ClientConfig {
	return &ClientConfig{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		APISecret:      apiSecret,
		WarehouseCode:  "MAIN",
		TimeoutSeconds: 30,
	}
}

// Validate validates the ERP client configuration
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.APISecret == "" {
		return ErrConfigMissingAPISecret
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.WarehouseCode == "" {
		c.WarehouseCode = "MAIN"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Sign generates the request signature. The ERP verifies
// HMAC-SHA256(secret, method + path + timestamp + body) sent in the
// X-Signature header.
func (c *ClientConfig) Sign(method, path, timestamp string, body []byte) string {
	var builder strings.Builder
	builder.WriteString(method)
	builder.WriteString(path)
	builder.WriteString(timestamp)
	builder.Write(body)

	h := hmac.New(sha256.New, []byte(c.APISecret))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}
