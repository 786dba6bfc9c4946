package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caseboard-sync-server/internal/config"
	"caseboard-sync-server/internal/handler"
	"caseboard-sync-server/internal/middleware"
	"caseboard-sync-server/internal/repository"
	"caseboard-sync-server/internal/service"
	"caseboard-sync-server/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	boardRepo := repository.NewBoardRepository(client, cfg.Database.Name)
	assetRepo := repository.NewAssetRepository(client, cfg.Database.Name)

	hub := websocket.NewHub(
		cfg.WebSocket.MaxConnPerBoard,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)
	go hub.Run()

	boardService := service.NewBoardService(boardRepo, assetRepo, service.NewSanitizer(), hub)
	assetService := service.NewAssetService(assetRepo, cfg.Assets.MaxUploadBytes)
	previewService := service.NewPreviewService(cfg.Preview.Timeout, cfg.Preview.MaxBodyBytes)

	boardHandler := handler.NewBoardHandler(boardService)
	assetHandler := handler.NewAssetHandler(assetService, cfg.Assets.MaxUploadBytes)
	previewHandler := handler.NewPreviewHandler(previewService)
	wsHandler := handler.NewWebSocketHandler(hub, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(cfg.CORS))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/boards", boardHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/boards/{id}", boardHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/boards/{id}", boardHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/boards/{id}", boardHandler.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/boards/{id}", boardHandler.Delete).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/assets", assetHandler.Upload).Methods("POST", "OPTIONS")
	api.HandleFunc("/assets/{projectId}/{assetId}", assetHandler.Serve).Methods("GET", "OPTIONS")

	api.HandleFunc("/preview", previewHandler.Unfurl).Methods("GET", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Caseboard Sync Server on %s (env: %s)", addr, cfg.Server.Env)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"caseboard-sync-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Caseboard Sync Server API","version":"1.0.0","endpoints":{"/api/v1/boards/{id}":"GET|POST|PUT|DELETE","/api/v1/assets":"POST","/api/v1/preview":"GET","/ws":"WebSocket"}}`))
}
