package tradeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
	"github.com/tradeplatform/trade-platform/src/eventservices"
)

func newTestRouter(t *testing.T) (*mux.Router, *eventservices.MockDatabase) {
	t.Helper()

	bus := eventpubsub.NewBus(0)
	require.NoError(t, bus.CreateTopic("trade-orders", 1))
	require.NoError(t, bus.CreateTopic("filled-orders", 1))

	db := eventservices.NewMockDatabase()
	svc := eventservices.NewTradeOrderService(db, bus, "trade-orders", "filled-orders", eventmodels.ExecutionConfig{})

	router := mux.NewRouter()
	SetupHandler(router.PathPrefix("/api/v1/orders").Subrouter(), svc)
	return router, db
}

func TestCreateOrderHandler(t *testing.T) {
	t.Run("valid order returns 201", func(t *testing.T) {
		router, _ := newTestRouter(t)

		body := `{"userId":"user-1","symbol":"AAPL","orderType":"BUY","quantity":10}`
		req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created eventmodels.TradeOrder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEqual(t, uuid.Nil, created.OrderID)
		assert.Equal(t, eventmodels.OrderStatusPending, created.Status)
		assert.Equal(t, 10, created.RemainingQuantity)
	})

	t.Run("invalid order returns 400 with field details", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString(`{"quantity":-1}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Message string            `json:"message"`
			Details map[string]string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "User ID is required", resp.Details["userId"])
		assert.Equal(t, "Symbol is required", resp.Details["symbol"])
		assert.Equal(t, "Quantity must be positive", resp.Details["quantity"])
	})

	t.Run("malformed body returns 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest("POST", "/api/v1/orders", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetOrderHandlers(t *testing.T) {
	seedOrder := func(t *testing.T, db *eventservices.MockDatabase, userID string, status eventmodels.OrderStatus) *eventmodels.TradeOrder {
		order := &eventmodels.TradeOrder{
			OrderID:   uuid.New(),
			UserID:    userID,
			Symbol:    "AAPL",
			OrderType: eventmodels.OrderTypeBuy,
			Status:    status,
			Quantity:  10,
		}
		require.NoError(t, db.SaveOrder(order))
		return order
	}

	t.Run("get by id", func(t *testing.T) {
		router, db := newTestRouter(t)
		order := seedOrder(t, db, "user-1", eventmodels.OrderStatusFilled)

		req := httptest.NewRequest("GET", "/api/v1/orders/"+order.OrderID.String(), nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var found eventmodels.TradeOrder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
		assert.Equal(t, order.OrderID, found.OrderID)
	})

	t.Run("unknown id returns 404", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest("GET", "/api/v1/orders/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id returns 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest("GET", "/api/v1/orders/not-a-uuid", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("filter by status", func(t *testing.T) {
		router, db := newTestRouter(t)
		seedOrder(t, db, "user-1", eventmodels.OrderStatusFilled)
		seedOrder(t, db, "user-1", eventmodels.OrderStatusPending)

		req := httptest.NewRequest("GET", "/api/v1/orders?status=FILLED", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var orders []*eventmodels.TradeOrder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, eventmodels.OrderStatusFilled, orders[0].Status)
	})

	t.Run("invalid status filter returns 400", func(t *testing.T) {
		router, _ := newTestRouter(t)

		req := httptest.NewRequest("GET", "/api/v1/orders?status=DONE", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get by user", func(t *testing.T) {
		router, db := newTestRouter(t)
		seedOrder(t, db, "user-1", eventmodels.OrderStatusPending)
		seedOrder(t, db, "user-2", eventmodels.OrderStatusPending)

		req := httptest.NewRequest("GET", "/api/v1/orders/user/user-1", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var orders []*eventmodels.TradeOrder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
		require.Len(t, orders, 1)
		assert.Equal(t, "user-1", orders[0].UserID)
	})
}
