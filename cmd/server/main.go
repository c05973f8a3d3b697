package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/plateful/plateful/internal/config"
	"github.com/plateful/plateful/internal/router"
	"github.com/plateful/plateful/internal/store"
	"github.com/plateful/plateful/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(cfg, st, hub),
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
	}

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
