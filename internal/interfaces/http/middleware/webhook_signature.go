package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopfront/backend/internal/infrastructure/config"
	"github.com/shopfront/backend/internal/interfaces/http/dto"
)

// Webhook verification headers
const (
	WebhookSignatureHeader = "X-Signature"
	WebhookTimestampHeader = "X-Timestamp"
)

// maxWebhookBody bounds how much of an inbound webhook body is read
const maxWebhookBody = 1 << 20 // 1 MB

// ComputeWebhookSignature returns the hex HMAC-SHA256 of timestamp + "." +
// body under the shared secret. Callers sign their payloads the same way.
func ComputeWebhookSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookSignature verifies the HMAC signature and timestamp window on
// inbound webhook requests. The body is restored for downstream handlers.
func WebhookSignature(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		timestamp := c.GetHeader(WebhookTimestampHeader)
		signature := c.GetHeader(WebhookSignatureHeader)
		if timestamp == "" || signature == "" {
			abortUnauthorized(c, "Missing webhook signature headers")
			return
		}

		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			abortUnauthorized(c, "Invalid webhook timestamp")
			return
		}

		// replayed or badly skewed requests are rejected outright
		drift := time.Since(time.Unix(ts, 0))
		if drift > cfg.TimestampWindow || drift < -cfg.TimestampWindow {
			abortUnauthorized(c, "Webhook timestamp outside accepted window")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			abortUnauthorized(c, "Failed to read webhook body")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := ComputeWebhookSignature(cfg.Secret, timestamp, body)
		if !hmac.Equal([]byte(expected), []byte(signature)) {
			abortUnauthorized(c, "Invalid webhook signature")
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, message))
}
