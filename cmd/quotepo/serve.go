package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/handler"
	"github.com/AnTengye/quotepo/middleware"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/pkg/metrics"
	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	if cfg.Xero.ClientID == "" || cfg.Xero.ClientSecret == "" {
		slog.Warn("CLIENT_ID or CLIENT_SECRET is not set, authorization will fail")
	}
	if cfg.Auth.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		cfg.Auth.JWTSecret = secret
		slog.Warn("auth.jwt_secret not set, sessions will not survive a restart")
	}

	slog.Info("configuration loaded successfully", "redirect_uri", cfg.Xero.RedirectURI)

	var archive service.QuoteArchive
	if cfg.Minio.Enabled() {
		minioSvc, err := service.NewMinioService(&cfg.Minio)
		if err != nil {
			return fmt.Errorf("failed to initialize MINIO service: %w", err)
		}
		if err := minioSvc.EnsureBucket(cmd.Context()); err != nil {
			return fmt.Errorf("failed to ensure MINIO bucket: %w", err)
		}
		archive = minioSvc
		slog.Info("quote archive enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	}

	service.InitSessionStore(&cfg.Store)

	router := newRouter(cfg, service.GetSessionStore(), archive)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.Xero.TimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config, store *service.SessionStore, archive service.QuoteArchive) *gin.Engine {
	xeroSvc := service.NewXeroService(&cfg.Xero)
	oauthSvc := service.NewOAuthService(&cfg.Xero, xeroSvc)

	authHandler := handler.NewAuthHandler(oauthSvc, store)
	orderHandler := handler.NewOrderHandler(cfg, xeroSvc, archive, store)

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = int64(cfg.Server.MaxUploadSizeMB) << 20
	handler.LoadTemplates(router)

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(metrics.Default()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
			"sessions":  store.Count(),
		})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	app := router.Group("/")
	app.Use(middleware.NoCache())
	app.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Minute))
	app.Use(middleware.Session(&cfg.Auth, store))
	{
		app.GET("/", authHandler.Login)
		app.GET("/callback", authHandler.Callback)
		app.GET("/upload", orderHandler.UploadForm)
		app.POST("/upload", orderHandler.Upload)
		app.POST("/send_po", orderHandler.Send)
		app.GET("/api/order", orderHandler.Order)
	}

	return router
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
