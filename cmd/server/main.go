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

	"github.com/shopscan/backend/config"
	httpDelivery "github.com/shopscan/backend/internal/delivery/http"
	"github.com/shopscan/backend/internal/domain"
	"github.com/shopscan/backend/internal/infrastructure/catalog"
	"github.com/shopscan/backend/internal/infrastructure/logger"
	"github.com/shopscan/backend/internal/infrastructure/marketplace"
	"github.com/shopscan/backend/internal/infrastructure/vision"
	"github.com/shopscan/backend/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg := logger.NewForEnvironment(cfg.Server.Environment)
	defer lg.Sync() //nolint:errcheck

	lg.Info("starting shopscan backend",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	// Local catalog
	productCatalog := catalog.NewMemoryCatalog()
	if err := productCatalog.LoadFile(cfg.Catalog.SeedFile); err != nil {
		lg.Fatal("failed to load catalog seed", zap.String("file", cfg.Catalog.SeedFile), zap.Error(err))
	}
	lg.Info("catalog loaded", zap.Int("products", productCatalog.Size()))

	// External clients. Missing credentials degrade the source instead of
	// failing startup.
	marketplaceClient := marketplace.NewClient(marketplace.Config{
		ClientID:     cfg.Marketplace.ClientID,
		ClientSecret: cfg.Marketplace.ClientSecret,
		BaseURL:      cfg.Marketplace.BaseURL,
	}, lg)

	visionClient := vision.NewClient(vision.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
	}, lg)

	// Source capabilities, computed once and passed into the resolver
	capabilities := domain.Capabilities{
		Local:       true,
		Vision:      cfg.VisionConfigured(),
		Marketplace: cfg.MarketplaceConfigured(),
	}
	lg.Info("source capabilities",
		zap.Bool("local", capabilities.Local),
		zap.Bool("vision", capabilities.Vision),
		zap.Bool("marketplace", capabilities.Marketplace))

	// Usecase layer
	suggestionService := usecase.NewSuggestionService(visionClient, lg)
	resolverService := usecase.NewResolverService(
		productCatalog,
		marketplaceClient,
		suggestionService,
		capabilities,
		usecase.ResolverConfig{
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
			LocalLimit:   cfg.Search.LocalLimit,
		},
		lg,
	)

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		lg.Fatal("failed to create upload directory", zap.Error(err))
	}

	// HTTP layer
	handler := httpDelivery.NewHandler(
		resolverService,
		suggestionService,
		marketplaceClient,
		productCatalog,
		cfg.Server.UploadDir,
		cfg.Marketplace.CampaignID,
		lg,
	)
	router := httpDelivery.SetupRouter(cfg, handler, lg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Run the server until interrupted, then drain
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		lg.Fatal("server error", zap.Error(err))
	}
	lg.Info("server stopped")
}
