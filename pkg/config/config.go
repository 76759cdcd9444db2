package config

import (
	"fmt"
	"os"
	"time"

	"FinScan/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		BodyLimit       string        `yaml:"body_limit" default:"32M"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Storage struct {
		UploadDir  string `yaml:"upload_dir" default:"data/uploads" validate:"required"`
		ReportsDir string `yaml:"reports_dir" default:"data/reports" validate:"required"`
		PlotsDir   string `yaml:"plots_dir" default:"data/plots" validate:"required"`
		SampleFile string `yaml:"sample_file"`
	} `yaml:"storage"`
	Pipeline struct {
		Features       []string `yaml:"features" default:"[\"Close\",\"Volume\",\"Daily_Return\",\"Volatility_7\",\"Volatility_30\"]" validate:"min=1,dive,required"`
		Contamination  float64  `yaml:"contamination" default:"0.05" validate:"gt=0,lt=1"`
		Seed           int64    `yaml:"seed" default:"42"`
		Delimiter      string   `yaml:"delimiter" validate:"max=2"`
		WriteLabeled   bool     `yaml:"write_labeled"`
		DeriveFeatures bool     `yaml:"derive_features"`
	} `yaml:"pipeline"`
	Model struct {
		Algorithm  string        `yaml:"algorithm" default:"iforest" validate:"oneof=iforest zscore remote"`
		Trees      int           `yaml:"trees" default:"100" validate:"gte=1,lte=10000"`
		SampleSize int           `yaml:"sample_size" default:"256" validate:"gte=2"`
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1,lte=256"`
		RemoteURL  string        `yaml:"remote_url" validate:"omitempty,url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		Retries    int           `yaml:"retries" default:"1" validate:"gte=1,lte=10"`
	} `yaml:"model"`
	Cache struct {
		Enabled       bool          `yaml:"enabled"`
		TTL           time.Duration `yaml:"ttl" default:"10m"`
		MemoryMaxSize int           `yaml:"memory_max_size" default:"256" validate:"gte=1"`
		Redis         struct {
			Enabled     bool          `yaml:"enabled"`
			Addr        string        `yaml:"addr" default:"localhost:6379"`
			Password    string        `yaml:"password"`
			DB          int           `yaml:"db"`
			Prefix      string        `yaml:"prefix" default:"finscan"`
			PoolSize    int           `yaml:"pool_size" default:"10" validate:"gte=1"`
			MinIdle     int           `yaml:"min_idle" default:"2" validate:"gte=0"`
			PoolTimeout time.Duration `yaml:"pool_timeout" default:"30s"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"finscan.runs"`
		LogTopic     string   `yaml:"log_topic" default:"finscan.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finscan"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	RateLimit struct {
		Capacity     float64 `yaml:"capacity" default:"10" validate:"gt=0"`
		RefillPerSec float64 `yaml:"refill_per_sec" default:"1" validate:"gt=0"`
	} `yaml:"ratelimit"`
}

var validate = validator.New()

// Default returns a configuration with every documented default applied.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML (or defaults when path is empty) and
// overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c, err = Default()
	} else {
		c, err = Load(path)
	}
	if err != nil {
		return nil, err
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("FINSCAN_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FINSCAN_CONTAMINATION"); v != "" {
		c.Pipeline.Contamination = util.ParseFloatDefault(v, c.Pipeline.Contamination)
	}
	if v := getenv("FINSCAN_SEED"); v != "" {
		c.Pipeline.Seed = int64(util.ParseIntDefault(v, int(c.Pipeline.Seed)))
	}
	if v := getenv("FINSCAN_FEATURES"); v != "" {
		c.Pipeline.Features = util.SplitList(v)
	}
	if v := getenv("FINSCAN_MODEL"); v != "" {
		c.Model.Algorithm = v
	}
	if v := getenv("FINSCAN_MODEL_URL"); v != "" {
		c.Model.RemoteURL = v
	}
	if v := getenv("FINSCAN_UPLOAD_DIR"); v != "" {
		c.Storage.UploadDir = v
	}
	if v := getenv("FINSCAN_REPORTS_DIR"); v != "" {
		c.Storage.ReportsDir = v
	}
	if v := getenv("FINSCAN_PLOTS_DIR"); v != "" {
		c.Storage.PlotsDir = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Model.Algorithm == "remote" && c.Model.RemoteURL == "" {
		return fmt.Errorf("model.remote_url is required for algorithm 'remote'")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Cache.Redis.Enabled && !c.Cache.Enabled {
		return fmt.Errorf("cache.redis requires cache.enabled")
	}
	return nil
}

// Delimiter returns the configured field delimiter, or 0 to pick by file extension.
func (c *Config) Delimiter() rune {
	if c.Pipeline.Delimiter == "" {
		return 0
	}
	if c.Pipeline.Delimiter == `\t` {
		return '\t'
	}
	return []rune(c.Pipeline.Delimiter)[0]
}
