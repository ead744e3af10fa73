package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routemart/checkout-backend/internal/models"
)

func setupCheckoutTestRouter() (*gin.Engine, *CheckoutHandler) {
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	// Input validation happens before the pipeline runs, so the handler can
	// be exercised without a wired service as long as requests are invalid.
	handler := NewCheckoutHandler(nil, logger)

	router := gin.New()
	router.POST("/api/v1/checkout", handler.Checkout)
	router.GET("/api/v1/checkout/:durableId/status", handler.Status)
	return router, handler
}

func postCheckout(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckoutHandler_MalformedBody(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	w := postCheckout(router, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeInvalidRequest, resp["error"])
}

func TestCheckoutHandler_MissingFields(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	w := postCheckout(router, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string                 `json:"error"`
		Details map[string]interface{} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeInvalidRequest, resp.Error)
	assert.Contains(t, resp.Details, "cart_id")
	assert.Contains(t, resp.Details, "trip_id")
	assert.Contains(t, resp.Details, "passengers")
	assert.Contains(t, resp.Details, "contact")
}

func TestCheckoutHandler_MissingPassengerName(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	body := `{
		"cartId": "c1",
		"tripId": "t1",
		"contactInfo": {"email": "a@b.com"},
		"passengers": [{"age": 30}]
	}`

	w := postCheckout(router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Details map[string]interface{} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []interface{}{float64(1)}, resp.Details["passenger_names"])
}

func TestCheckoutHandler_InvalidContactEmail(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	body := `{
		"cartId": "c1",
		"tripId": "t1",
		"contactInfo": {"email": "not-an-email"},
		"passengers": [{"firstName": "John"}]
	}`

	w := postCheckout(router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeInvalidRequest, resp["error"])
}

func TestCheckoutHandler_InvalidContactPhone(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	body := `{
		"cartId": "c1",
		"tripId": "t1",
		"contactInfo": {"phone": "123"},
		"passengers": [{"firstName": "John"}]
	}`

	w := postCheckout(router, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckoutHandler_StatusRequiresDurableID(t *testing.T) {
	router, _ := setupCheckoutTestRouter()

	// Gin treats a bare /status path as a different route entirely.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout//status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}
