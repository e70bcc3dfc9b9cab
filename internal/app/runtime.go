package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"horse.fit/tariqi/internal/broker"
	"horse.fit/tariqi/internal/classify"
	"horse.fit/tariqi/internal/cli"
	"horse.fit/tariqi/internal/config"
	"horse.fit/tariqi/internal/dedup"
	"horse.fit/tariqi/internal/logging"
	"horse.fit/tariqi/internal/ner"
	"horse.fit/tariqi/internal/pipeline"
	"horse.fit/tariqi/internal/scraper"
	"horse.fit/tariqi/internal/textnorm"
)

// loadRuntime loads the env file, config and logger shared by every database-backed command.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func loadVocabulary(path string) (classify.Vocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return classify.DefaultVocabulary()
	}
	return classify.LoadVocabulary(path)
}

func buildClassifier(endpoint, keywordsFile string, cfg *config.Config, logger zerolog.Logger) (*classify.Classifier, error) {
	vocab, err := loadVocabulary(keywordsFile)
	if err != nil {
		return nil, fmt.Errorf("load keyword vocabulary: %w", err)
	}

	tagger := ner.New(endpoint, cfg.NERTimeout, cfg.NERRatePerSecond)
	if unavailable, ok := tagger.(ner.Unavailable); ok {
		logger.Warn().Str("reason", unavailable.Reason).Msg("entity tagger unavailable; relevance falls back to keywords")
	}

	return classify.New(textnorm.New(logger), tagger, vocab, logging.Component(logger, "classifier"))
}

// buildPipeline wires one pipeline service. The returned closer releases the broker connection.
func buildPipeline(ctx context.Context, cfg *config.Config, store pipeline.Store, logger zerolog.Logger) (*pipeline.Service, func(), error) {
	classifier, err := buildClassifier(cfg.NEREndpoint, cfg.KeywordsFile, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	closer := func() {}
	var publisher pipeline.Publisher
	if strings.TrimSpace(cfg.AMQPURL) != "" {
		amqpPublisher, err := broker.NewPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			return nil, nil, fmt.Errorf("connect incident publisher: %w", err)
		}
		publisher = amqpPublisher
		closer = func() {
			if err := amqpPublisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("close incident publisher failed")
			}
		}
	}

	svc := pipeline.NewService(store, classifier, publisher, pipeline.Options{
		BatchSize: cfg.PipelineBatchSize,
		Dedup: dedup.Options{
			Threshold:      cfg.PipelineSimilarityThreshold,
			Window:         cfg.PipelineTimeWindow,
			MinClusterSize: cfg.PipelineMinClusterSize,
		},
	}, logging.Component(logger, "pipeline"))
	return svc, closer, nil
}

func buildSweeper(cfg *config.Config, saver scraper.Saver, logger zerolog.Logger) (*scraper.Sweeper, error) {
	groups := cfg.ScraperGroupIDList()
	if len(groups) == 0 {
		return nil, fmt.Errorf("SCRAPER_GROUP_IDS is empty")
	}
	source, err := scraper.NewHTTPGroupSource(cfg.ScraperEndpoint, scraper.DefaultTimeout, cfg.ScraperRatePerSecond)
	if err != nil {
		return nil, err
	}
	return scraper.NewSweeper(source, saver, scraper.Options{
		GroupIDs:       groups,
		MessageLimit:   cfg.ScraperMessageLimit,
		SaveRetries:    cfg.ScraperSaveRetries,
		SaveRetryDelay: cfg.ScraperSaveRetryDelay,
	}, logging.Component(logger, "scraper")), nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
