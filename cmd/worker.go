package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/grocery/services/delivery/config"
	"example.com/grocery/services/delivery/internal/database"
	"example.com/grocery/services/delivery/internal/messaging"
	"example.com/grocery/services/delivery/internal/metrics"
	"example.com/grocery/services/delivery/internal/repositories"
	"example.com/grocery/services/delivery/internal/search"
	"example.com/grocery/services/delivery/internal/services"
	"example.com/grocery/services/delivery/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker: the order search projection consumer and the periodic sweep that reassigns deliveries stranded without a driver`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	g, ctx := errgroup.WithContext(ctx)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without the order projection")
		elasticClient = nil
	}

	metricsCollector := metrics.NewMetrics()

	// Order projection: mirror order events from the bus into Elasticsearch.
	if elasticClient != nil {
		consumer, err := messaging.NewConsumer(cfg.Azure)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus consumer, continuing without the order projection")
		} else {
			processor := messaging.NewOrderProjectionProcessor(elasticClient)
			g.Go(func() error {
				defer consumer.Close()
				log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Service Bus processor")
				return consumer.ProcessMessages(ctx, processor)
			})
		}
	}

	// Stranded-delivery sweep: every tick, move deliveries parked on the
	// unassigned sentinel onto drivers that have since become available.
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Delivery.SweepInterval).Msg("Starting stranded-delivery sweep")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Delivery.SweepInterval),
			gocron.NewTask(func() {
				runSweep(ctx, db, metricsCollector, tracer)
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// runSweep builds a fresh delivery service on its own session so each tick
// sees current state and holds no shared statement cache.
func runSweep(ctx context.Context, db *gorm.DB, metricsCollector *metrics.Metrics, tracer tracing.Tracer) {
	session := db.Session(&gorm.Session{NewDB: true})

	deliveryService := services.NewDeliveryService(
		repositories.NewDriverRepository(session),
		repositories.NewDeliveryRepository(session),
		repositories.NewOrderRepository(session),
		services.NewUniformRandomPolicy(),
		nil, metricsCollector, tracer,
	)

	assigned, err := deliveryService.AssignStranded(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Stranded-delivery sweep failed")
		return
	}
	if assigned {
		log.Info().Msg("Stranded-delivery sweep reassigned deliveries")
	}
}
