package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/grocery/services/delivery/config"
	"example.com/grocery/services/delivery/internal/api"
	"example.com/grocery/services/delivery/internal/cache"
	"example.com/grocery/services/delivery/internal/database"
	"example.com/grocery/services/delivery/internal/messaging"
	"example.com/grocery/services/delivery/internal/metrics"
	"example.com/grocery/services/delivery/internal/repositories"
	"example.com/grocery/services/delivery/internal/search"
	"example.com/grocery/services/delivery/internal/services"
	"example.com/grocery/services/delivery/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for orders, deliveries, drivers and the catalog`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = nil
	}

	publisher, err := messaging.NewPublisher(cfg.Azure, "delivery-api")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize event publisher, continuing without events")
		publisher = nil
	} else {
		defer publisher.Close()
	}

	metricsCollector := metrics.NewMetrics()
	metricsCollector.SetHealth("database", true)

	svcs := buildServices(db, redisCache, elasticClient, publisher, metricsCollector, tracer)
	server := api.NewServer(cfg, svcs, metricsCollector)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func buildServices(
	db *gorm.DB,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	publisher messaging.Publisher,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) api.Services {
	driverRepo := repositories.NewDriverRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	productRepo := repositories.NewProductRepository(db)
	categoryRepo := repositories.NewCategoryRepository(db)
	userRepo := repositories.NewUserRepository(db)

	deliveryService := services.NewDeliveryService(
		driverRepo, deliveryRepo, orderRepo,
		services.NewUniformRandomPolicy(),
		publisher, metricsCollector, tracer,
	)

	var indexer services.ProductIndexer
	if elasticClient != nil {
		indexer = elasticClient
	}

	return api.Services{
		Delivery: deliveryService,
		Order:    services.NewOrderService(orderRepo, productRepo, userRepo, deliveryService, publisher, metricsCollector),
		Catalog:  services.NewCatalogService(productRepo, categoryRepo, redisCache, indexer),
		Driver:   services.NewDriverService(driverRepo),
		User:     services.NewUserService(userRepo),
	}
}
