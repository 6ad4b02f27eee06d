package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/events"
)

const (
	notificationQueue = "order_notifications"
	orderEventsKey    = "order.#"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	server, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer server.Close()

	// --- Start RabbitMQ Consumer ---
	if server.Broker != nil {
		notifier := events.NewNotifier(nil)
		if err := server.Broker.Consume(notificationQueue, orderEventsKey, notifier.HandleDelivery); err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		} else {
			log.Printf("Consuming %s from queue %s", orderEventsKey, notificationQueue)
		}
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.App.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := server.App.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
