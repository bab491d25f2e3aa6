package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestHandleValidationErrorReportsJSONFieldNames(t *testing.T) {
	type markUnrecoverableRequest struct {
		Reason string `json:"reason" binding:"required,max=500"`
	}

	SetupValidator()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/unrecoverable", func(c *gin.Context) {
		var req markUnrecoverableRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/unrecoverable", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_VALIDATION")
	assert.Contains(t, w.Body.String(), `"reason"`)
	assert.NotContains(t, w.Body.String(), "Reason")
}

func TestHandleValidationErrorAcceptsValidInput(t *testing.T) {
	type logQuery struct {
		EntityType string `form:"entity_type" binding:"omitempty,oneof=STOCK PRICE CUSTOMER ORDER INVOICE"`
		PageSize   int    `form:"page_size" binding:"omitempty,gte=1,lte=200"`
	}

	SetupValidator()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/logs", func(c *gin.Context) {
		var q logQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entity_type": q.EntityType})
	})

	t.Run("valid query", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?entity_type=STOCK&page_size=50", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown entity type", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?entity_type=SHIPMENT", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Must be one of: STOCK PRICE CUSTOMER ORDER INVOICE")
	})

	t.Run("page size over the cap", func(t *testing.T) {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs?page_size=500", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Must be at most 200")
	})
}

func TestValidationMessage(t *testing.T) {
	type deadLetterParams struct {
		ID     string `json:"id" binding:"required,uuid"`
		Reason string `json:"reason" binding:"omitempty,max=10"`
		Page   int    `json:"page" binding:"omitempty,gte=1"`
	}

	v := validator.New()
	v.SetTagName("binding")
	err := v.Struct(deadLetterParams{ID: "not-a-uuid", Reason: "far too long for the cap", Page: -1})
	require.Error(t, err)

	messages := map[string]string{}
	for _, e := range err.(validator.ValidationErrors) {
		messages[e.Field()] = validationMessage(e)
	}

	assert.Equal(t, "Must be a UUID", messages["ID"])
	assert.Equal(t, "Must be at most 10 characters", messages["Reason"])
	assert.Equal(t, "Must be at least 1", messages["Page"])
}
