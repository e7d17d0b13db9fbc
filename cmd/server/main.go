package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/studyhall/backend/internal/attempts"
	"github.com/studyhall/backend/internal/auth"
	"github.com/studyhall/backend/internal/database"
	"github.com/studyhall/backend/internal/middleware"
	"github.com/studyhall/backend/internal/progress"
	"github.com/studyhall/backend/internal/questionbank"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	localPath := os.Getenv("PROGRESS_DB_PATH")
	if localPath == "" {
		localPath = "progress.db"
	}
	localStore, err := progress.OpenLocalStore(localPath)
	if err != nil {
		log.Fatalf("Failed to open device progress store: %v", err)
	}
	defer localStore.Close()

	// Initialize handlers
	questionStore := questionbank.NewStore(db)
	attemptStore := attempts.NewStore(db)

	authHandler := auth.NewHandler(db)
	questionHandler := questionbank.NewHandler(questionStore)
	attemptService := attempts.NewService(attemptStore, questionStore)
	attemptHandler := attempts.NewHandler(attemptService)
	progressService := progress.NewService(progress.NewStore(db), localStore, questionStore)
	progressHandler := progress.NewHandler(progressService)

	ctx, cancel := context.WithCancel(context.Background())
	attemptService.StartFlushWorker(ctx)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	questionHandler.RegisterRoutes(api)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")
	attemptHandler.RegisterRoutes(protected)

	// Progress works signed-in or anonymous
	optional := api.PathPrefix("").Subrouter()
	optional.Use(middleware.OptionalAuth)
	progressHandler.RegisterRoutes(optional)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Device-ID"},
		ExposedHeaders:   []string{"X-Device-ID"},
		AllowCredentials: true,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: c.Handler(r),
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: shutdown: %v", err)
	}
}
