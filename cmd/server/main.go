package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-realtime/internal/auth"
	"chat-realtime/internal/config"
	"chat-realtime/internal/database"
	"chat-realtime/internal/handlers"
	"chat-realtime/internal/metrics"
	"chat-realtime/internal/services"
	"chat-realtime/internal/websocket"
	"chat-realtime/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize engine and services
	channels := services.NewChannelService(db, cfg.Realtime.ChannelCacheTTL, m)
	engine := websocket.NewEngine(channels, db, m)
	notifications := services.NewNotificationService(db, engine, engine, cfg.Realtime.NotificationWorkers, m)
	messages := services.NewMessageService(db, channels, engine, engine, notifications, cfg.Realtime.MaxMessageLength, m)
	reactions := services.NewReactionService(db, db, db, channels, engine, cfg.Realtime.ReactionCacheTTL, m)
	authService := auth.NewService(db, cfg)

	go reactions.Run(ctx)

	// Initialize handlers
	router := handlers.NewEventRouter(engine, messages, reactions)
	wsHandlers := handlers.NewWebSocketHandlers(authService, engine, router, cfg.Server.AllowedOrigins, cfg.Realtime.SendQueueSize, m)
	notificationHandlers := handlers.NewNotificationHandlers(authService, notifications)
	reactionHandlers := handlers.NewReactionHandlers(authService, reactions)

	// Setup routes
	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, wsHandlers, notificationHandlers, reactionHandlers)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
	logger.Info("🗄️  Storage driver: %s", cfg.Database.Driver)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown: %v", err)
	}
	engine.Shutdown()
	messages.Wait()
	reactions.Wait()
	logger.Info("Shutdown complete")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
