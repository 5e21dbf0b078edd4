package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devarsh10/userbase/internal/api"
	"github.com/devarsh10/userbase/internal/api/handlers"
	"github.com/devarsh10/userbase/internal/config"
	"github.com/devarsh10/userbase/internal/repositories"
)

// @title Userbase API
// @version 1.0
// @description Minimal user-management REST API: create, edit, delete and list users, and attach a profile image.
// @BasePath /
func main() {
	// Connect to database
	repositories.ConnectDatabase()

	images, err := repositories.NewImageStore(config.Envs.UploadDir)
	if err != nil {
		log.Fatalf("Could not prepare upload directory: %v", err)
	}
	handlers.Images = images

	mux := api.SetupRouter()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Envs.Port),
		Handler: mux,
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting Userbase server on port: %s", config.Envs.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
