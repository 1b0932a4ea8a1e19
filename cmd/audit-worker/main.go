package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/aaronwang/auction-house/internal/audit"
	"github.com/aaronwang/auction-house/internal/config"
)

func main() {
	log.Println("Starting audit worker...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	store, err := audit.NewStore(cfg.PostgresConn)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer store.Close()
	log.Println("Connected to postgres")

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()
	log.Println("Connected to NATS")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := audit.NewConsumer(natsConn, store)
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Fatalf("consumer error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down audit worker...")
	cancel()
	log.Println("Audit worker stopped")
}
