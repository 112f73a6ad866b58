package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/broker_gateway/internal/config"
	"github.com/finsight/broker_gateway/internal/domain"
	"github.com/finsight/broker_gateway/internal/infrastructure/broker"
	"github.com/finsight/broker_gateway/internal/infrastructure/logger"
	"github.com/finsight/broker_gateway/internal/infrastructure/storage"
	"github.com/finsight/broker_gateway/internal/usecase"
	"github.com/finsight/broker_gateway/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage (order journal)
	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	// 4. Init Engines
	paper := broker.NewPaperEngine(cfg.Paper.StartingCash, log)

	var (
		live      domain.Broker
		connected func() bool
	)
	switch cfg.Broker.Transport {
	case "ws":
		ws := broker.NewWSBroker(cfg.Broker.WSEndpoint, log)
		if err := ws.Connect(); err != nil {
			// Reconnects are already scheduled; paper mode keeps working.
			log.Warn("Initial broker connection failed", zap.Error(err))
		}
		defer ws.Close()
		live = ws
		connected = ws.Connected
	default:
		live = broker.NewHTTPBroker(cfg.Broker.RESTEndpoint, log)
	}

	// 5. Init Services
	gateway := usecase.NewGateway(live, paper, store, domain.TradeMode(cfg.Broker.Mode), log)
	confirm := usecase.NewConfirmService(gateway, time.Duration(cfg.Confirm.TTLMinutes)*time.Minute, log)

	// 6. Init Web Server
	srv := web.NewServer(cfg.Server.Port, gateway, confirm, store, connected, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal("Web server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Web server shutdown failed", zap.Error(err))
	}
}
