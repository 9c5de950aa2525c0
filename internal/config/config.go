package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Workspace struct {
		// Default is the workspace that inbound webhook traffic is ingested
		// into. Inbound messages are dropped when it is empty.
		Default string `mapstructure:"default"`
	} `mapstructure:"workspace"`
	Gateway struct {
		BaseURL     string        `mapstructure:"baseURL"`
		APIVersion  string        `mapstructure:"apiVersion"`
		Timeout     time.Duration `mapstructure:"timeout"`
		VerifyToken string        `mapstructure:"verifyToken"` // webhook verification handshake secret
	} `mapstructure:"gateway"`
	Workers struct {
		Secret   string               `mapstructure:"secret"` // shared bearer secret for cron triggers
		Outbox   OutboxWorkerConfig   `mapstructure:"outbox"`
		BulkSend BulkSendWorkerConfig `mapstructure:"bulkSend"`
	} `mapstructure:"workers"`
	Sla struct {
		FirstResponseMinutes int `mapstructure:"firstResponseMinutes"`
		ResolutionMinutes    int `mapstructure:"resolutionMinutes"`
	} `mapstructure:"sla"`
	NATS struct {
		URL           string `mapstructure:"url"`
		Stream        string `mapstructure:"stream"`
		SubjectPrefix string `mapstructure:"subjectPrefix"`
	} `mapstructure:"nats"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
	WorkerPools struct {
		Audit AuditWorkerPoolConfig `mapstructure:"audit"`
	} `mapstructure:"workerPools"`
}

// OutboxWorkerConfig holds configuration for the outbox delivery worker
type OutboxWorkerConfig struct {
	BatchSize   int           `mapstructure:"batchSize"`   // rows claimed per invocation
	MaxAttempts int           `mapstructure:"maxAttempts"` // terminal failure ceiling
	BackoffBase time.Duration `mapstructure:"backoffBase"` // first retry delay
	BackoffCap  time.Duration `mapstructure:"backoffCap"`  // backoff ceiling
	LockTTL     time.Duration `mapstructure:"lockTTL"`     // stale claims older than this become reclaimable
}

// BulkSendWorkerConfig holds configuration for the bulk send-job worker
type BulkSendWorkerConfig struct {
	JobLimit     int           `mapstructure:"jobLimit"`     // jobs advanced per invocation
	BatchSize    int           `mapstructure:"batchSize"`    // items fetched per job per invocation
	SendInterval time.Duration `mapstructure:"sendInterval"` // pacing between consecutive sends
}

// AuditWorkerPoolConfig holds configuration for the async audit worker pool
type AuditWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
}

// IsProduction reports whether the service runs with production semantics
// (worker trigger auth is mandatory, among other things).
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "live"
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("gateway.apiVersion", "v19.0")
	v.SetDefault("gateway.timeout", 30*time.Second)

	v.SetDefault("workers.outbox.batchSize", 20)
	v.SetDefault("workers.outbox.maxAttempts", 5)
	v.SetDefault("workers.outbox.backoffBase", time.Minute)
	v.SetDefault("workers.outbox.backoffCap", time.Hour)
	v.SetDefault("workers.outbox.lockTTL", 10*time.Minute)

	v.SetDefault("workers.bulkSend.jobLimit", 5)
	v.SetDefault("workers.bulkSend.batchSize", 10)
	v.SetDefault("workers.bulkSend.sendInterval", 100*time.Millisecond)

	v.SetDefault("sla.firstResponseMinutes", 60)
	v.SetDefault("sla.resolutionMinutes", 24*60)

	v.SetDefault("nats.subjectPrefix", "v1.delivery")

	v.SetDefault("workerPools.audit.poolSize", 4)
	v.SetDefault("workerPools.audit.queueSize", 4096)
	v.SetDefault("workerPools.audit.maxBlock", time.Second)
	v.SetDefault("workerPools.audit.expiryTime", time.Minute)

	// Config file settings
	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/halodesk-wa-delivery")

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if secret := os.Getenv("WORKER_SECRET"); secret != "" {
		v.Set("workers.secret", secret)
	}
	if token := os.Getenv("WEBHOOK_VERIFY_TOKEN"); token != "" {
		v.Set("gateway.verifyToken", token)
	}
	if ws := os.Getenv("WORKSPACE_ID"); ws != "" {
		v.Set("workspace.default", ws)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
