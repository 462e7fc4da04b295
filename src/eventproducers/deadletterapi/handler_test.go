package deadletterapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
	"github.com/tradeplatform/trade-platform/src/eventservices"
)

func newTestFixture(t *testing.T) (*mux.Router, *eventservices.MockDatabase, *eventpubsub.Bus) {
	t.Helper()

	b := eventpubsub.NewBus(0)
	require.NoError(t, b.CreateTopic("trade-orders", 1))

	database := eventservices.NewMockDatabase()

	router := mux.NewRouter()
	SetupHandler(router.PathPrefix("/api/v1/dead-letters").Subrouter(), database, b)
	return router, database, b
}

func TestReplayDeadLetter(t *testing.T) {
	router, database, b := newTestFixture(t)

	deadLetter := &eventmodels.DeadLetter{
		SourceTopic:  "trade-orders",
		GroupID:      "trade-processor-group",
		Key:          "order-1",
		Payload:      []byte(`{"orderId":"order-1"}`),
		ErrorMessage: "simulated random execution failure",
		Attempts:     3,
	}
	require.NoError(t, database.SaveDeadLetter(deadLetter))

	replayed := make(chan eventpubsub.Message, 1)
	group, err := b.Subscribe("trade-orders", eventpubsub.ConsumerConfig{GroupID: "capture"}, func(ctx context.Context, msg eventpubsub.Message) error {
		replayed <- msg
		return nil
	})
	require.NoError(t, err)
	group.Start(context.Background())
	defer group.Stop()

	req := httptest.NewRequest("POST", "/api/v1/dead-letters/1/replay", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case msg := <-replayed:
		assert.Equal(t, "order-1", msg.Key)
		assert.Equal(t, `{"orderId":"order-1"}`, string(msg.Value))
	case <-time.After(5 * time.Second):
		t.Fatal("replayed message never arrived on the source topic")
	}

	// the row is gone after replay
	remaining, err := database.FetchDeadLetters()
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestReplayUnknownDeadLetter(t *testing.T) {
	router, _, _ := newTestFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/dead-letters/99/replay", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDeadLetters(t *testing.T) {
	router, database, _ := newTestFixture(t)

	require.NoError(t, database.SaveDeadLetter(&eventmodels.DeadLetter{
		SourceTopic: "trade-orders",
		Key:         "order-1",
		Payload:     []byte("{}"),
		Attempts:    3,
	}))

	req := httptest.NewRequest("GET", "/api/v1/dead-letters", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order-1"`)
}
