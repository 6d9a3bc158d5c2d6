package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/common"
	"github.com/arbiterhq/arbiter/config"
	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/messaging"
	"github.com/arbiterhq/arbiter/perf"
	"github.com/arbiterhq/arbiter/pipeline"
	"github.com/arbiterhq/arbiter/recommend"
	"github.com/arbiterhq/arbiter/registry"
	"github.com/arbiterhq/arbiter/server"
	"github.com/arbiterhq/arbiter/staging"
	"github.com/arbiterhq/arbiter/tracker"
	"github.com/arbiterhq/arbiter/validation"
)

var datasetFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the arbiter HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&datasetFile, "dataset", "", "recommendation dataset file (default: built-in demo data)")
}

func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	logger := common.NewLogger(common.LoggerConfig{
		Level:  common.LogLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})
	log := common.NewServiceEntry(logger, "arbiter")

	reg := prometheus.NewRegistry()

	gov := governor.New(governor.Config{
		Limits:                resourceLimits(cfg.Governor.Limits),
		ResourceCheckInterval: cfg.Governor.ResourceCheckInterval,
		HealthCheckInterval:   cfg.Governor.HealthCheckInterval,
		PressureThreshold:     cfg.Governor.PressureThreshold,
	}, governor.NewMetrics(reg), log)
	gov.Start()
	defer gov.Stop()

	dataset, err := loadDataset(log)
	if err != nil {
		return err
	}
	generators := buildGenerators(dataset, log)

	ranker := recommend.NewRanker(recommend.RankerConfig{
		RelevanceWeight:       cfg.Ranker.RelevanceWeight,
		PersonalizationWeight: cfg.Ranker.PersonalizationWeight,
		CategoryWeight:        cfg.Ranker.CategoryWeight,
		AttributeWeight:       cfg.Ranker.AttributeWeight,
	}, recommend.SimilarityProvider(), nil, log)

	validator, err := buildValidator(cfg.Validation, log)
	if err != nil {
		return err
	}

	broker, err := buildBroker(cfg.Broker, log)
	if err != nil {
		return err
	}
	defer broker.Close()
	if err := subscribeConsumer(broker, log); err != nil {
		return err
	}

	store, err := buildStaging(cfg.Staging, log)
	if err != nil {
		return err
	}

	var audit *tracker.AuditLog
	if cfg.Pipeline.TrackerDBPath != "" {
		audit, err = tracker.OpenAuditLog(cfg.Pipeline.TrackerDBPath)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer audit.Close()
	}
	track := tracker.New(audit, log)
	perfTracker := perf.New(perf.NewMetrics(reg), log)

	coordinator := pipeline.New(pipeline.Config{
		Workers:          cfg.Pipeline.Workers,
		QueueDepth:       cfg.Pipeline.QueueDepth,
		RunTimeout:       cfg.Pipeline.RunTimeout,
		StagingThreshold: int64(cfg.Staging.Threshold),
	}, gov, generators, ranker, validator, track, perfTracker, broker, store, log)
	coordinator.Start()

	srv := server.New(cfg.Server, gov, coordinator, track, perfTracker, reg, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			coordinator.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	if err := srv.Shutdown(); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	coordinator.Stop()
	return nil
}

func resourceLimits(limits map[string]int64) map[governor.Resource]int64 {
	converted := make(map[governor.Resource]int64, len(limits))
	for name, limit := range limits {
		converted[governor.Resource(name)] = limit
	}
	return converted
}

func loadDataset(log *logrus.Entry) (*recommend.Dataset, error) {
	if datasetFile != "" {
		ds, err := recommend.LoadDataset(datasetFile)
		if err != nil {
			return nil, err
		}
		log.WithField("items", len(ds.Items)).Info("dataset loaded")
		return ds, nil
	}
	log.Info("no dataset file given, using built-in demo data")
	return demoDataset(), nil
}

func buildGenerators(ds *recommend.Dataset, log *logrus.Entry) []recommend.Generator {
	catalog := recommend.NewMemoryCatalog(ds.Items)
	preferences := recommend.NewMemoryPreferenceStore(ds.Preferences)
	interactions := recommend.NewMemoryInteractionStore(ds.Interactions, ds.Similarities)

	content := recommend.NewContentBasedGenerator(catalog, preferences, 0.1, log)
	collaborative := recommend.NewCollaborativeGenerator(interactions, catalog, log)
	hybrid := recommend.NewHybridGenerator(content, collaborative, log)

	generators := []recommend.Generator{hybrid}
	if len(ds.Rules) > 0 {
		generators = append(generators, recommend.NewContextualGenerator(catalog, ds.Rules, log))
	}
	return generators
}

func buildValidator(cfg config.ValidationConfig, log *logrus.Entry) (*validation.Validator, error) {
	var constraints []validation.Constraint
	var areas []validation.ImpactArea
	if cfg.PolicyFile != "" {
		policy, err := validation.LoadPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		constraints, areas = policy.Compile()
		if cfg.ImpactThreshold == 0 {
			cfg.ImpactThreshold = policy.ImpactThreshold
		}
	}
	return validation.NewValidator(constraints, areas, cfg.ImpactThreshold, log), nil
}

func buildBroker(cfg config.BrokerConfig, log *logrus.Entry) (messaging.Broker, error) {
	switch cfg.Kind {
	case "", "memory":
		return messaging.NewMemoryBroker(log), nil
	case "rabbitmq":
		return messaging.NewRabbitBroker(messaging.RabbitConfig{
			URL:         cfg.URL,
			QueuePrefix: cfg.QueuePrefix,
		}, log)
	default:
		return nil, fmt.Errorf("unknown broker kind: %q", cfg.Kind)
	}
}

// subscribeConsumer attaches a logging handler under the default consumer
// identity so published decisions are observable even without an external
// downstream service.
func subscribeConsumer(broker messaging.Broker, log *logrus.Entry) error {
	consumer := registry.NewModuleIdentifier("decision-consumer", registry.ComponentHandler, "handle")
	entry := log.WithField("component", "decision-consumer")
	return broker.Subscribe(consumer, func(msg *messaging.ProcessingMessage) {
		entry.WithFields(logrus.Fields{
			"message_id": msg.MessageID,
			"type":       msg.Type,
			"status":     msg.Status(),
		}).Info("decision message received")
	})
}

func buildStaging(cfg config.StagingConfig, log *logrus.Entry) (staging.Store, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "redis":
		return staging.NewRedisStore(cfg.RedisURL, cfg.KeyPrefix, cfg.TTL, log)
	case "s3":
		return staging.NewS3Store(context.Background(), staging.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, log)
	default:
		return nil, fmt.Errorf("unknown staging kind: %q", cfg.Kind)
	}
}

// demoDataset is a small catalog good enough to exercise the pipeline
// without wiring real data sources.
func demoDataset() *recommend.Dataset {
	return &recommend.Dataset{
		Items: []recommend.Item{
			{ID: "book-101", Category: "books", Attributes: []string{"fiction"}, Features: map[string]float64{"fiction": 1, "long": 0.6}},
			{ID: "book-102", Category: "books", Attributes: []string{"nonfiction"}, Features: map[string]float64{"nonfiction": 1, "long": 0.8}},
			{ID: "film-201", Category: "films", Attributes: []string{"drama"}, Features: map[string]float64{"drama": 1, "long": 0.4}},
			{ID: "film-202", Category: "films", Attributes: []string{"comedy"}, Features: map[string]float64{"comedy": 1}},
		},
		Preferences: map[string]map[string]float64{
			"demo-user": {"fiction": 0.9, "drama": 0.5, "long": 0.3},
		},
		Interactions: []recommend.Interaction{
			{UserID: "neighbor", ItemID: "film-201", Rating: 0.9},
			{UserID: "neighbor", ItemID: "book-102", Rating: 0.6},
		},
		Similarities: map[string][]recommend.UserSimilarity{
			"demo-user": {{UserID: "neighbor", Similarity: 0.8}},
		},
		Rules: []recommend.ContextRule{
			{Name: "evening-films", ContextType: "homepage", Metadata: map[string]string{"daypart": "evening"}, Categories: []string{"films"}, Weight: 0.5},
		},
	}
}
