package deadletterapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventproducers"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
)

var (
	db  eventmodels.DatabaseService
	bus *eventpubsub.Bus
)

type ReplayResponse struct {
	ID          uint   `json:"id"`
	SourceTopic string `json:"sourceTopic"`
	Key         string `json:"key"`
	Replayed    bool   `json:"replayed"`
}

func listDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	deadLetters, err := db.FetchDeadLetters()
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := eventproducers.SetResponse(&deadLetters, http.StatusOK, w); err != nil {
		log.Errorf("listDeadLettersHandler: failed to set response: %v", err)
	}
}

// replayDeadLetterHandler publishes a dead-lettered payload back to its
// source topic and removes the row. The replayed message goes through the
// same retry cycle as any other, so a still-failing payload will come back.
func replayDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		eventproducers.SetErrorResponse(eventmodels.NewValidationError("invalid dead letter id", map[string]string{
			"id": fmt.Sprintf("%q is not a valid id", vars["id"]),
		}), w)
		return
	}

	deadLetter, err := db.FindDeadLetterByID(uint(id))
	if err != nil {
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := bus.Publish(deadLetter.SourceTopic, deadLetter.Key, deadLetter.Payload, nil); err != nil {
		log.Errorf("replayDeadLetterHandler: failed to republish dead letter %d: %v", deadLetter.ID, err)
		eventproducers.SetErrorResponse(err, w)
		return
	}

	if err := db.DeleteDeadLetter(deadLetter.ID); err != nil {
		log.Errorf("replayDeadLetterHandler: failed to delete dead letter %d after replay: %v", deadLetter.ID, err)
	}

	log.Infof("replayDeadLetterHandler: replayed dead letter %d to %s (key=%s)",
		deadLetter.ID, deadLetter.SourceTopic, deadLetter.Key)

	resp := ReplayResponse{
		ID:          deadLetter.ID,
		SourceTopic: deadLetter.SourceTopic,
		Key:         deadLetter.Key,
		Replayed:    true,
	}

	if err := eventproducers.SetResponse(&resp, http.StatusOK, w); err != nil {
		log.Errorf("replayDeadLetterHandler: failed to set response: %v", err)
	}
}

func SetupHandler(router *mux.Router, database eventmodels.DatabaseService, b *eventpubsub.Bus) {
	db = database
	bus = b

	router.HandleFunc("", listDeadLettersHandler).Methods("GET")
	router.HandleFunc("/{id}/replay", replayDeadLetterHandler).Methods("POST")
}
