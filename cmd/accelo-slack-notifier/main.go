package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/handlers"
	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/middleware"
	"accelo-slack-notifier/internal/services"
)

// App represents the main application structure with all services and handlers.
type App struct {
	config         *config.Config
	webhookHandler *handlers.WebhookHandler
	oauthHandler   *handlers.OAuthHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Setup(os.Stdout, cfg.LogLevel, cfg.GinMode)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	slog.Info("Connecting to Firestore", "project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
	firestoreClient, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
	if err != nil {
		slog.Error("Failed to create Firestore client", "component", "startup", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := firestoreClient.Close(); err != nil {
			slog.Error("Error closing Firestore client", "component", "shutdown", "error", err)
		}
	}()

	app := newApp(cfg, firestoreClient, outboundClients{
		accelo: services.NewAcceloHTTPClient(ctx, services.AcceloCredentials{
			TokenURL:     cfg.AcceloTokenURL(),
			ClientID:     cfg.AcceloClientID,
			ClientSecret: cfg.AcceloClientSecret,
			AccessToken:  cfg.AcceloAccessToken,
		}),
		slack: slack.New(cfg.SlackBotToken),
		oauth: http.DefaultClient,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      app.router(),
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	slog.Info("Starting server", "component", "server", "port", cfg.Port, "accelo_domain", cfg.AcceloDomain)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "component", "server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...", "component", "server")

	// Give in-flight webhooks, including status-change settle delays, time to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "component", "server", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully", "component", "server")
}

// outboundClients are the authenticated clients for the remote APIs.
type outboundClients struct {
	accelo *http.Client
	slack  *slack.Client
	oauth  *http.Client
}

func newApp(cfg *config.Config, firestoreClient *firestore.Client, clients outboundClients) *App {
	accelo := services.NewAcceloClient(cfg.AcceloAPIURL(), clients.accelo,
		services.WithRateLimit(cfg.AcceloRateLimit, cfg.AcceloRateBurst))

	firestoreService := services.NewFirestoreService(firestoreClient)
	slackService := services.NewSlackService(clients.slack)
	mentions := services.NewMentions(firestoreService)

	messages := services.NewRequestMessageService(cfg, accelo, mentions)
	requests := services.NewRequestService(
		accelo, slackService, messages, firestoreService, firestoreService, cfg.StatusChangeDelay,
	)
	resolver := services.NewLinkUnfurlResolver(accelo, slackService, mentions, cfg.AcceloWebURL())

	return &App{
		config:         cfg,
		webhookHandler: handlers.NewWebhookHandler(requests, resolver),
		oauthHandler: handlers.NewOAuthHandler(
			cfg, services.NewSlackInstallations(firestoreClient), clients.oauth,
		),
	}
}

func (app *App) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())

	router.POST("/webhook", middleware.WebhookTokenMiddleware(app.config.WebhookSecret), app.webhookHandler.HandleWebhook)
	router.GET("/", app.oauthHandler.HandleHome)
	router.GET("/slack/oauth/callback", app.oauthHandler.HandleSlackCallback)
	router.GET("/health", handlers.HandleHealth)

	return router
}
