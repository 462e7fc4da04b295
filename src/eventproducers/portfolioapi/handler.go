package portfolioapi

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventproducers"
	"github.com/tradeplatform/trade-platform/src/eventservices"
)

var service *eventservices.PortfolioService

func getPortfolioByUserHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entries, err := service.GetPortfolioByUserID(vars["userId"])
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(&entries, http.StatusOK, w); err != nil {
		log.Errorf("getPortfolioByUserHandler: failed to set response: %v", err)
	}
}

func getPortfolioEntryHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := uuid.Parse(vars["id"])
	if err != nil {
		eventproducers.SetErrorResponse(eventmodels.NewValidationError("invalid portfolio entry id", map[string]string{
			"id": fmt.Sprintf("%q is not a valid UUID", vars["id"]),
		}), w)
		return
	}

	entry, err := service.GetPortfolioEntryByID(id)
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(entry, http.StatusOK, w); err != nil {
		log.Errorf("getPortfolioEntryHandler: failed to set response: %v", err)
	}
}

func getPortfolioEntryBySymbolHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	entry, err := service.GetPortfolioEntry(vars["userId"], vars["symbol"])
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(entry, http.StatusOK, w); err != nil {
		log.Errorf("getPortfolioEntryBySymbolHandler: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, svc *eventservices.PortfolioService) {
	service = svc

	router.HandleFunc("/users/{userId}", getPortfolioByUserHandler).Methods("GET")
	router.HandleFunc("/users/{userId}/symbols/{symbol}", getPortfolioEntryBySymbolHandler).Methods("GET")
	router.HandleFunc("/{id}", getPortfolioEntryHandler).Methods("GET")
}
