// Package main is the entry point for the spatial annotation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/cache"
	"github.com/spatial-annotator/backend/internal/config"
	"github.com/spatial-annotator/backend/internal/gateway"
	"github.com/spatial-annotator/backend/internal/handler"
	"github.com/spatial-annotator/backend/internal/store"
)

func main() {
	// Parse command line flags
	role := flag.String("role", "", "Service role: gateway or handler (overrides SERVICE_ROLE env var)")
	port := flag.String("port", "", "Server port (overrides SERVER_PORT env var)")
	flag.Parse()

	// Override environment variables if flags are provided
	if *role != "" {
		os.Setenv("SERVICE_ROLE", *role)
	}
	if *port != "" {
		os.Setenv("SERVER_PORT", *port)
	}

	app := fx.New(
		fx.Provide(
			config.New,
			newLogger,
			newGinEngine,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

// newLogger creates a new zap logger based on the environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newGinEngine creates and configures a new Gin engine.
func newGinEngine(cfg *config.Config) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(handler.CORS())
	engine.NoRoute(handler.NoRoute)

	return engine
}

// startServer starts the HTTP server based on the configured role.
func startServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, engine *gin.Engine) error {
	logger.Info("Starting service",
		zap.String("role", cfg.Role),
		zap.String("port", cfg.ServerPort),
	)

	// Health check endpoint
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"role":    cfg.Role,
			"service": "spatial-annotator",
		})
	})

	api := engine.Group("")

	var st store.Store
	var cacheClient cache.Cache

	if cfg.IsGateway() {
		// Gateway mode: proxy to the handler service
		gw := gateway.NewGateway(cfg, logger)
		gw.RegisterRoutes(api)

		logger.Info("Gateway routes registered",
			zap.String("handler_url", cfg.HandlerURL),
		)
	} else {
		// Handler mode: connect the storage backend, register handlers
		var err error
		st, err = store.New(cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize storage backend", zap.Error(err))
			return err
		}

		cacheClient, err = cache.New(cfg, logger)
		if err != nil {
			logger.Error("Failed to initialize cache", zap.Error(err))
			return err
		}

		h := handler.NewHandler(st, cacheClient, logger)
		h.RegisterRoutes(api)

		logger.Info("Handler routes registered",
			zap.String("backend", cfg.StoreBackend),
		)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info("Server starting", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Server shutting down")

			if st != nil {
				st.Close()
			}
			if cacheClient != nil {
				_ = cacheClient.Close()
			}

			return server.Shutdown(ctx)
		},
	})

	return nil
}
