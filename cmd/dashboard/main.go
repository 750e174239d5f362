package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/waggishPlayer/hot-wax/internal/activity"
	"github.com/waggishPlayer/hot-wax/internal/aws"
	"github.com/waggishPlayer/hot-wax/internal/config"
	"github.com/waggishPlayer/hot-wax/internal/handlers"
	"github.com/waggishPlayer/hot-wax/internal/workspace"
)

// workspaces idle longer than this are dropped along with their credential
const idleTTL = 12 * time.Hour

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.Logger(), handlers.SecurityHeaders())

	handlers.RegisterHealthRoute(r)
	handlers.RegisterDashboardRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	opts := workspace.Options{
		BackendURL: cfg.BackendURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
	}

	var metrics *aws.MetricsRecorder
	if cfg.ActivityQueueURL != "" || cfg.MetricsNamespace != "" {
		clients, err := aws.NewAWSClients(context.Background())
		if err != nil {
			slog.Error("failed to init aws clients", "error", err)
			os.Exit(1)
		}
		if cfg.ActivityQueueURL != "" {
			opts.Activity = activity.NewPublisher(clients.SQS, cfg.ActivityQueueURL)
		}
		if cfg.MetricsNamespace != "" {
			metrics = aws.NewMetricsRecorder(clients.CloudWatch, cfg.MetricsNamespace)
			opts.Observer = metrics
		}
	}

	store := sessions.NewCookieStore(cfg.SessionKey)
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.CookieSecure
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"

	templates, err := handlers.DefaultTemplates()
	if err != nil {
		slog.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	registry := workspace.NewRegistry(opts, idleTTL)
	r := setupRouter(handlers.HandlerConfig{
		Registry:  registry,
		Sessions:  store,
		Templates: templates,
	})

	port := cfg.ListenAddr[strings.LastIndex(cfg.ListenAddr, ":")+1:]
	protect := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure),
		csrf.TrustedOrigins([]string{"localhost:" + port, "127.0.0.1:" + port, "localhost", "127.0.0.1"}),
	)
	handler := protect(r)

	if !cfg.RunLocal {
		// one invocation per request; idle workspaces and metrics are handled before returning
		adapter := httpadapter.New(handler)
		lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			resp, err := adapter.ProxyWithContext(ctx, req)
			registry.Sweep()
			flushMetrics(ctx, metrics)
			return resp, err
		})
		return
	}

	serve(cfg, handler, registry, metrics)
}

// serve runs the local HTTP server until SIGINT or SIGTERM.
func serve(cfg *config.Config, handler http.Handler, registry *workspace.Registry, metrics *aws.MetricsRecorder) {
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: handler,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go housekeeping(ctx, cfg.MetricsInterval, registry, metrics)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Server starting", "addr", cfg.ListenAddr, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("Shutting down server...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	flushMetrics(shutdownCtx, metrics)
	slog.Info("Server exited gracefully.")
}

// housekeeping periodically flushes gateway metrics and drops idle workspaces.
func housekeeping(ctx context.Context, interval time.Duration, registry *workspace.Registry, metrics *aws.MetricsRecorder) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(); n > 0 {
				slog.Info("dropped idle workspaces", "count", n)
			}
			flushMetrics(ctx, metrics)
		}
	}
}

func flushMetrics(ctx context.Context, metrics *aws.MetricsRecorder) {
	if metrics == nil || metrics.Pending() == 0 {
		return
	}
	if err := metrics.Flush(ctx); err != nil {
		slog.Warn("failed to flush gateway metrics", "error", err)
	}
}
