package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// DefaultConfigFile is read from the working directory and then from the user's home.
	DefaultConfigFile = "BridgeReporter.conf"
)

type Config struct {
	Env string

	Log       LogConfig
	Ops       OpsConfig
	Bridge    BridgeConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Heartbeat HeartbeatConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Archive   ArchiveConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// OpsConfig controls the health/metrics HTTP listener.
type OpsConfig struct {
	Enabled bool
	Port    int
}

// BridgeConfig holds worker credentials and client tuning for the Bridge REST API.
type BridgeConfig struct {
	BaseURL    string
	Study      string
	Email      string
	Password   string
	AppName    string
	AppVersion int
	Timeout    time.Duration
	PageSize   int
}

// QueueConfig configures the SQS request queue.
type QueueConfig struct {
	URL               string
	Region            string
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	SleepTime         time.Duration
}

// WorkerConfig sizes the dispatch pool.
type WorkerConfig struct {
	Count            int
	BufferSize       int
	StudyConcurrency int
}

type HeartbeatConfig struct {
	Interval time.Duration
}

type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	StudyCacheTTL time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// ArchiveConfig toggles mirroring generated reports into Postgres.
type ArchiveConfig struct {
	Enabled bool
}

// Load reads the configuration and validates it for the reporter worker.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read merges defaults, environment variables and the optional properties files
// without validating the result. An empty path means DefaultConfigFile in the
// working directory.
func Read(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("properties")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if path == "" {
		path = DefaultConfigFile
	}
	files := []string{path}
	if home, err := os.UserHomeDir(); err == nil {
		files = append(files, filepath.Join(home, DefaultConfigFile))
	}
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func mergeFile(v *viper.Viper, file string) error {
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()
	return v.MergeConfig(f)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("env")

	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	cfg.Ops = OpsConfig{
		Enabled: v.GetBool("ops.enabled"),
		Port:    v.GetInt("ops.port"),
	}

	cfg.Bridge = BridgeConfig{
		BaseURL:    v.GetString("bridge.base.url"),
		Study:      v.GetString("bridge.worker.study"),
		Email:      v.GetString("bridge.worker.email"),
		Password:   v.GetString("bridge.worker.password"),
		AppName:    v.GetString("bridge.client.app.name"),
		AppVersion: v.GetInt("bridge.client.app.version"),
		Timeout:    parseDuration(v.GetString("bridge.client.timeout"), 30*time.Second),
		PageSize:   v.GetInt("bridge.client.page.size"),
	}

	cfg.Queue = QueueConfig{
		URL:               v.GetString("reporter.request.sqs.queue.url"),
		Region:            v.GetString("aws.region"),
		MaxMessages:       v.GetInt("reporter.request.sqs.max.messages"),
		WaitTime:          time.Duration(v.GetInt("reporter.request.sqs.wait.time.seconds")) * time.Second,
		VisibilityTimeout: time.Duration(v.GetInt("reporter.request.sqs.visibility.timeout.seconds")) * time.Second,
		SleepTime:         time.Duration(v.GetInt("reporter.request.sqs.sleep.time.millis")) * time.Millisecond,
	}

	cfg.Worker = WorkerConfig{
		Count:            v.GetInt("threadpool.worker.count"),
		BufferSize:       v.GetInt("threadpool.buffer.size"),
		StudyConcurrency: v.GetInt("worker.study.concurrency"),
	}

	cfg.Heartbeat = HeartbeatConfig{
		Interval: time.Duration(v.GetInt("heartbeat.interval.minutes")) * time.Minute,
	}

	cfg.Redis = RedisConfig{
		Enabled:       v.GetBool("redis.enabled"),
		Host:          v.GetString("redis.host"),
		Port:          v.GetInt("redis.port"),
		Password:      v.GetString("redis.password"),
		DB:            v.GetInt("redis.db"),
		StudyCacheTTL: parseDuration(v.GetString("redis.study.cache.ttl"), 15*time.Minute),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("db.host"),
		Port:         v.GetInt("db.port"),
		User:         v.GetString("db.user"),
		Password:     v.GetString("db.password"),
		Name:         v.GetString("db.name"),
		SSLMode:      v.GetString("db.ssl.mode"),
		MaxOpenConns: v.GetInt("db.max.open.conns"),
		MaxIdleConns: v.GetInt("db.max.idle.conns"),
	}

	cfg.Archive = ArchiveConfig{
		Enabled: v.GetBool("archive.enabled"),
	}

	return cfg
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.Queue.URL == "":
		return errors.New("reporter.request.sqs.queue.url must be provided")
	case c.Bridge.BaseURL == "":
		return errors.New("bridge.base.url must not be empty")
	case c.Bridge.Study == "":
		return errors.New("bridge.worker.study must be provided")
	case c.Bridge.Email == "":
		return errors.New("bridge.worker.email must be provided")
	case c.Bridge.Password == "":
		return errors.New("bridge.worker.password must be provided")
	}

	if c.Worker.Count <= 0 {
		return errors.New("threadpool.worker.count must be positive")
	}
	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval.minutes must be positive")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("ops.enabled", true)
	v.SetDefault("ops.port", 9090)

	v.SetDefault("bridge.base.url", "https://webservices.sagebridge.org")
	v.SetDefault("bridge.worker.study", "")
	v.SetDefault("bridge.worker.email", "")
	v.SetDefault("bridge.worker.password", "")
	v.SetDefault("bridge.client.app.name", "BridgeReporter")
	v.SetDefault("bridge.client.app.version", 1)
	v.SetDefault("bridge.client.timeout", "30s")
	v.SetDefault("bridge.client.page.size", 100)

	v.SetDefault("reporter.request.sqs.queue.url", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("reporter.request.sqs.max.messages", 1)
	v.SetDefault("reporter.request.sqs.wait.time.seconds", 20)
	v.SetDefault("reporter.request.sqs.visibility.timeout.seconds", 0)
	v.SetDefault("reporter.request.sqs.sleep.time.millis", 125)

	v.SetDefault("threadpool.worker.count", 4)
	v.SetDefault("threadpool.buffer.size", 0)
	v.SetDefault("worker.study.concurrency", 4)

	v.SetDefault("heartbeat.interval.minutes", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.study.cache.ttl", "15m")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "bridge_reporter")
	v.SetDefault("db.ssl.mode", "disable")
	v.SetDefault("db.max.open.conns", 10)
	v.SetDefault("db.max.idle.conns", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
