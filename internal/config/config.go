package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"8"`

	PipelineBatchSize           int           `envconfig:"PIPELINE_BATCH_SIZE" default:"100"`
	PipelineSimilarityThreshold float64       `envconfig:"PIPELINE_SIMILARITY_THRESHOLD" default:"0.8"`
	PipelineTimeWindow          time.Duration `envconfig:"PIPELINE_TIME_WINDOW" default:"2h"`
	PipelineMinClusterSize      int           `envconfig:"PIPELINE_MIN_CLUSTER_SIZE" default:"2"`
	PipelineInterval            time.Duration `envconfig:"PIPELINE_INTERVAL" default:"5m"`

	NEREndpoint      string        `envconfig:"NER_ENDPOINT" default:""`
	NERTimeout       time.Duration `envconfig:"NER_TIMEOUT" default:"10s"`
	NERRatePerSecond float64       `envconfig:"NER_RATE_PER_SECOND" default:"5"`
	KeywordsFile     string        `envconfig:"KEYWORDS_FILE" default:""`

	WebhookSecretHash string `envconfig:"WEBHOOK_SECRET_HASH" default:""`

	ScraperEndpoint       string        `envconfig:"SCRAPER_ENDPOINT" default:""`
	ScraperGroupIDs       string        `envconfig:"SCRAPER_GROUP_IDS" default:""`
	ScraperMessageLimit   int           `envconfig:"SCRAPER_MESSAGE_LIMIT" default:"100"`
	ScraperSaveRetries    int           `envconfig:"SCRAPER_SAVE_RETRIES" default:"3"`
	ScraperSaveRetryDelay time.Duration `envconfig:"SCRAPER_SAVE_RETRY_DELAY" default:"2s"`
	ScraperRatePerSecond  float64       `envconfig:"SCRAPER_RATE_PER_SECOND" default:"1"`

	AMQPURL        string `envconfig:"AMQP_URL" default:""`
	AMQPExchange   string `envconfig:"AMQP_EXCHANGE" default:"tariqi"`
	AMQPRoutingKey string `envconfig:"AMQP_ROUTING_KEY" default:"incident.verified"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) cannot exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.PipelineBatchSize < 1 {
		return fmt.Errorf("PIPELINE_BATCH_SIZE must be >= 1")
	}
	if c.PipelineSimilarityThreshold <= 0 || c.PipelineSimilarityThreshold > 1 {
		return fmt.Errorf("PIPELINE_SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.PipelineTimeWindow <= 0 {
		return fmt.Errorf("PIPELINE_TIME_WINDOW must be > 0")
	}
	if c.PipelineMinClusterSize < 1 {
		return fmt.Errorf("PIPELINE_MIN_CLUSTER_SIZE must be >= 1")
	}
	if c.PipelineInterval <= 0 {
		return fmt.Errorf("PIPELINE_INTERVAL must be > 0")
	}
	if c.NERTimeout <= 0 {
		return fmt.Errorf("NER_TIMEOUT must be > 0")
	}
	if c.NERRatePerSecond < 0 {
		return fmt.Errorf("NER_RATE_PER_SECOND must be >= 0")
	}
	if c.ScraperMessageLimit < 1 {
		return fmt.Errorf("SCRAPER_MESSAGE_LIMIT must be >= 1")
	}
	if c.ScraperSaveRetries < 1 {
		return fmt.Errorf("SCRAPER_SAVE_RETRIES must be >= 1")
	}
	if c.ScraperSaveRetryDelay < 0 {
		return fmt.Errorf("SCRAPER_SAVE_RETRY_DELAY must be >= 0")
	}
	if c.ScraperRatePerSecond < 0 {
		return fmt.Errorf("SCRAPER_RATE_PER_SECOND must be >= 0")
	}
	if strings.TrimSpace(c.AMQPURL) != "" && strings.TrimSpace(c.AMQPExchange) == "" {
		return fmt.Errorf("AMQP_EXCHANGE is required when AMQP_URL is set")
	}
	return nil
}

// ScraperGroupIDList parses SCRAPER_GROUP_IDS, dropping blanks and repeats.
func (c *Config) ScraperGroupIDList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.ScraperGroupIDs, ",")
	groups := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		group := strings.TrimSpace(part)
		if group == "" {
			continue
		}
		if _, exists := seen[group]; exists {
			continue
		}
		seen[group] = struct{}{}
		groups = append(groups, group)
	}
	return groups
}
