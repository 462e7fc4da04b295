package tradeapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventproducers"
	"github.com/tradeplatform/trade-platform/src/eventservices"
)

var service *eventservices.TradeOrderService

func createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var order eventmodels.TradeOrder
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		eventproducers.SetErrorResponse(eventmodels.NewValidationError("malformed request body", nil), w)
		return
	}

	created, err := service.CreateOrder(&order)
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(created, http.StatusCreated, w); err != nil {
		log.Errorf("createOrderHandler: failed to set response: %v", err)
	}
}

func getOrdersHandler(w http.ResponseWriter, r *http.Request) {
	var orders []*eventmodels.TradeOrder
	var err error

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := eventmodels.OrderStatus(statusParam)
		if validationErr := status.Validate(); validationErr != nil {
			eventproducers.SetErrorResponse(eventmodels.NewValidationError("invalid order status", map[string]string{
				"status": validationErr.Error(),
			}), w)
			return
		}
		orders, err = service.GetOrdersByStatus(status)
	} else {
		orders, err = service.GetAllOrders()
	}

	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(&orders, http.StatusOK, w); err != nil {
		log.Errorf("getOrdersHandler: failed to set response: %v", err)
	}
}

func getOrderHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	orderID, err := uuid.Parse(vars["orderId"])
	if err != nil {
		eventproducers.SetErrorResponse(eventmodels.NewValidationError("invalid order id", map[string]string{
			"orderId": fmt.Sprintf("%q is not a valid UUID", vars["orderId"]),
		}), w)
		return
	}

	order, err := service.GetOrderByID(orderID)
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(order, http.StatusOK, w); err != nil {
		log.Errorf("getOrderHandler: failed to set response: %v", err)
	}
}

func getOrdersByUserHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	orders, err := service.GetOrdersByUserID(vars["userId"])
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(&orders, http.StatusOK, w); err != nil {
		log.Errorf("getOrdersByUserHandler: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, svc *eventservices.TradeOrderService) {
	service = svc

	router.HandleFunc("", createOrderHandler).Methods("POST")
	router.HandleFunc("", getOrdersHandler).Methods("GET")
	router.HandleFunc("/{orderId}", getOrderHandler).Methods("GET")
	router.HandleFunc("/user/{userId}", getOrdersByUserHandler).Methods("GET")
}
