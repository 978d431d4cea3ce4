package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/Yamemik/casher/config"
	"github.com/Yamemik/casher/config/database"
	"github.com/Yamemik/casher/internal/schema"
	"github.com/Yamemik/casher/pkg/logger"
	"github.com/Yamemik/casher/router"
	"github.com/Yamemik/casher/socket"
)

func main() {
	// Load .env file; absence is fine, OS environment variables apply.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Debug)
	defer logger.Sync()

	client := database.Connect(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			logger.Sugar.Errorf("Error disconnecting store client: %v", err)
		}
	}()
	db := client.Database(cfg.Database)

	schemas := schema.Default()

	hub := socket.NewHub()
	go hub.Run()

	handler := router.Setup(db, cfg, schemas, hub)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Casher backend listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar.Fatalf("Could not listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Sugar.Info("Server is shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Sugar.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Sugar.Info("Server stopped")
}
