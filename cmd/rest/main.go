package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"admission-chatbot-be/internal/bootstrap"
	"admission-chatbot-be/internal/config"
	"admission-chatbot-be/internal/server"
	"admission-chatbot-be/internal/tracer"
	"admission-chatbot-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Tracer shutdown error: %v", err)
		}
	}()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	if err := container.VerificationService.Start(); err != nil {
		log.Printf("Background: Failed to start verification workers: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server with graceful shutdown: in-flight answers and claimed
	// verification tasks get to settle before the process exits.
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server stopped: %v", err)
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down...", sig)
	}

	if err := srv.Shutdown(); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	container.VerificationService.Stop()

	if container.NatsPublisher != nil {
		container.NatsPublisher.Close()
	}
	if container.NatsSubscriber != nil {
		container.NatsSubscriber.Close()
	}
	if container.GraphClient != nil {
		if err := container.GraphClient.Close(context.Background()); err != nil {
			log.Printf("Neo4j close error: %v", err)
		}
	}

	log.Println("✅ Shutdown complete")
}
