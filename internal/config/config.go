// Package config loads process settings from the environment, an optional
// dotenv file and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SUPPLYWATCH_"

// Config holds every tunable of the supplywatch server.
type Config struct {
	Host     string `env:"SUPPLYWATCH_HOST,default=0.0.0.0"`
	Port     int    `env:"SUPPLYWATCH_PORT,default=5000" validate:"min=0,max=65535"`
	LogLevel string `env:"SUPPLYWATCH_LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`

	StorageDriver string `env:"SUPPLYWATCH_STORAGE_DRIVER,default=file" validate:"oneof=memory file sqlite badger postgres s3"`
	Collection    string `env:"SUPPLYWATCH_COLLECTION,default=rooms" validate:"required"`
	DataFile      string `env:"SUPPLYWATCH_DATA_FILE,default=rooms_data.json" validate:"required_if=StorageDriver file"`
	SQLitePath    string `env:"SUPPLYWATCH_SQLITE_PATH,default=supplywatch.db" validate:"required_if=StorageDriver sqlite"`
	BadgerDir     string `env:"SUPPLYWATCH_BADGER_DIR,default=supplywatch-badger" validate:"required_if=StorageDriver badger"`
	PostgresDSN   string `env:"SUPPLYWATCH_POSTGRES_DSN" validate:"required_if=StorageDriver postgres"`

	S3Bucket          string `env:"SUPPLYWATCH_S3_BUCKET" validate:"required_if=StorageDriver s3"`
	S3Region          string `env:"SUPPLYWATCH_S3_REGION,default=us-east-1"`
	S3Endpoint        string `env:"SUPPLYWATCH_S3_ENDPOINT" validate:"omitempty,url"`
	S3PathStyle       bool   `env:"SUPPLYWATCH_S3_PATH_STYLE,default=false"`
	S3AccessKeyID     string `env:"SUPPLYWATCH_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"SUPPLYWATCH_S3_SECRET_ACCESS_KEY" validate:"required_with=S3AccessKeyID"`

	SubscriberBuffer int           `env:"SUPPLYWATCH_SUBSCRIBER_BUFFER,default=64" validate:"min=1"`
	PersistTimeout   time.Duration `env:"SUPPLYWATCH_PERSIST_TIMEOUT,default=10s" validate:"gt=0"`
	ReportRate       float64       `env:"SUPPLYWATCH_REPORT_RATE,default=50" validate:"gte=0"`
	ReportBurst      int           `env:"SUPPLYWATCH_REPORT_BURST,default=100" validate:"min=1"`
	ShutdownTimeout  time.Duration `env:"SUPPLYWATCH_SHUTDOWN_TIMEOUT,default=15s" validate:"gt=0"`
}

// Storage is the subset of Config needed to open a persistence backend.
type Storage struct {
	Driver            string
	Collection        string
	DataFile          string
	SQLitePath        string
	BadgerDir         string
	PostgresDSN       string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3PathStyle       bool
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Storage extracts the backend settings.
func (c Config) Storage() Storage {
	return Storage{
		Driver:            c.StorageDriver,
		Collection:        c.Collection,
		DataFile:          c.DataFile,
		SQLitePath:        c.SQLitePath,
		BadgerDir:         c.BadgerDir,
		PostgresDSN:       c.PostgresDSN,
		S3Bucket:          c.S3Bucket,
		S3Region:          c.S3Region,
		S3Endpoint:        c.S3Endpoint,
		S3PathStyle:       c.S3PathStyle,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

var validate = validator.New()

// Validate normalizes the log level and checks driver-specific requirements.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Parse decodes and validates a config from es.
func Parse(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the process environment, filling unset variables from envFile.
// An empty envFile falls back to ".env" in the working directory when present.
func Load(envFile string) (Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	path := envFile
	if path == "" {
		path = ".env"
		if _, statErr := os.Stat(path); statErr != nil {
			return Parse(es)
		}
	}
	fileVals, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("read env file %s: %w", path, err)
	}
	for k, v := range fileVals {
		if _, set := es[k]; !set {
			es[k] = v
		}
	}
	return Parse(es)
}
