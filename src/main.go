package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/dbutils"
	"github.com/tradeplatform/trade-platform/src/eventconsumers"
	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventproducers"
	"github.com/tradeplatform/trade-platform/src/eventproducers/deadletterapi"
	"github.com/tradeplatform/trade-platform/src/eventproducers/portfolioapi"
	"github.com/tradeplatform/trade-platform/src/eventproducers/tradeapi"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
	"github.com/tradeplatform/trade-platform/src/eventservices"
	"github.com/tradeplatform/trade-platform/src/utils"
)

func main() {
	if err := utils.InitEnvironmentVariables(); err != nil {
		log.Fatalf("failed to initialize environment variables: %v", err)
	}

	cfg, err := eventmodels.LoadAppConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	gormDB, err := dbutils.InitPostgres(cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	db, err := eventservices.NewDatabaseService(gormDB)
	if err != nil {
		log.Fatalf("failed to initialize database service: %v", err)
	}

	// setup bus
	bus := eventpubsub.NewBus(cfg.Bus.RetainedPerPartition)
	for _, topic := range []string{cfg.Bus.OrdersTopic, cfg.Bus.FilledOrdersTopic, cfg.Bus.DeadLetterTopic} {
		if err := bus.CreateTopic(topic, cfg.Bus.Partitions); err != nil {
			log.Fatalf("failed to create topic %s: %v", topic, err)
		}
	}

	// setup services
	tradeOrderService := eventservices.NewTradeOrderService(db, bus, cfg.Bus.OrdersTopic, cfg.Bus.FilledOrdersTopic, cfg.Execution)
	portfolioService := eventservices.NewPortfolioService(db, cfg.Portfolio)

	onDeadLetter := func(msg eventpubsub.Message, handlerErr error, attempts int) {
		deadLetter := &eventmodels.DeadLetter{
			SourceTopic:     msg.Topic,
			SourcePartition: msg.Partition,
			SourceOffset:    msg.Offset,
			GroupID:         msg.Headers[eventpubsub.HeaderGroupID],
			Key:             msg.Key,
			Payload:         msg.Value,
			ErrorMessage:    handlerErr.Error(),
			Attempts:        attempts,
			CreatedAt:       time.Now().UTC(),
		}

		if err := db.SaveDeadLetter(deadLetter); err != nil {
			log.Errorf("failed to persist dead letter for key %s: %v", msg.Key, err)
		}
	}

	// setup consumers
	ctx := context.Background()

	orderConsumer := eventconsumers.NewTradeOrderConsumer(bus, cfg.Bus.OrdersTopic, eventpubsub.ConsumerConfig{
		GroupID:         cfg.Bus.ProcessorGroupID,
		OffsetReset:     cfg.Bus.OffsetReset,
		MaxAttempts:     cfg.Bus.MaxAttempts,
		BackoffInterval: cfg.Bus.BackoffInterval.Std(),
		DeadLetterTopic: cfg.Bus.DeadLetterTopic,
		OnDeadLetter:    onDeadLetter,
	}, tradeOrderService)

	portfolioConsumer := eventconsumers.NewPortfolioConsumer(bus, cfg.Bus.FilledOrdersTopic, eventpubsub.ConsumerConfig{
		GroupID:         cfg.Bus.PortfolioGroupID,
		OffsetReset:     cfg.Bus.OffsetReset,
		MaxAttempts:     cfg.Bus.MaxAttempts,
		BackoffInterval: cfg.Bus.BackoffInterval.Std(),
		DeadLetterTopic: cfg.Bus.DeadLetterTopic,
		OnDeadLetter:    onDeadLetter,
	}, portfolioService)

	if err := orderConsumer.Start(ctx); err != nil {
		log.Fatalf("failed to start trade order consumer: %v", err)
	}

	if err := portfolioConsumer.Start(ctx); err != nil {
		log.Fatalf("failed to start portfolio consumer: %v", err)
	}

	// setup router
	router := mux.NewRouter()
	tradeapi.SetupHandler(router.PathPrefix("/api/v1/orders").Subrouter(), tradeOrderService)
	portfolioapi.SetupHandler(router.PathPrefix("/api/v1/portfolios").Subrouter(), portfolioService)
	deadletterapi.SetupHandler(router.PathPrefix("/api/v1/dead-letters").Subrouter(), db, bus)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "UP"}
		if err := eventproducers.SetResponse(&resp, http.StatusOK, w); err != nil {
			log.Errorf("health: failed to set response: %v", err)
		}
	}).Methods("GET")

	// start the http server
	srv := &http.Server{
		Handler: router,
		Addr:    fmt.Sprintf(":%s", cfg.HTTP.Port),
	}

	go func() {
		log.Infof("listening on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http: failed to listen and serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)

	<-stop
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down server: %v", err)
	}

	// stop consumers before closing the bus so in-flight messages drain
	orderConsumer.Stop()
	portfolioConsumer.Stop()
	bus.Close()

	log.Info("Server gracefully stopped")
}
