// Package config handles application configuration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where binaries look for the YAML file when no flag is given.
const DefaultPath = "config/config.yaml"

var validate = validator.New()

// Config defines the structure for all application configuration.
type Config struct {
	LogLevel  string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error fatal"`
	HTTP      HTTPConf      `yaml:"http"`
	Dataset   DatasetConf   `yaml:"dataset"`
	Artifacts ArtifactsConf `yaml:"artifacts"`
	Training  TrainingConf  `yaml:"training"`

	DBHost     string `yaml:"-"`
	DBPort     string `yaml:"-"`
	DBUser     string `yaml:"-"`
	DBPassword string `yaml:"-"`
	DBName     string `yaml:"-"`
	DBSSLMode  string `yaml:"-"`
}

// HTTPConf holds the API listener settings.
type HTTPConf struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatasetConf selects where the canonical training data comes from.
type DatasetConf struct {
	Source string `yaml:"source" validate:"oneof=csv postgres"`
	Path   string `yaml:"path" validate:"required_if=Source csv"`
}

// ArtifactsConf holds the artifact directory.
type ArtifactsConf struct {
	Dir string `yaml:"dir" validate:"required"`
}

// TrainingConf holds split settings and candidate hyper-parameters.
// Algorithms may name any non-empty subset of the candidates, each at most once.
type TrainingConf struct {
	SplitMode    string       `yaml:"split_mode" validate:"oneof=random date"`
	TestFraction Fraction     `yaml:"test_fraction" validate:"gt=0,lt=1"`
	SplitDate    string       `yaml:"split_date" validate:"required_if=SplitMode date"`
	Seed         uint64       `yaml:"seed"`
	Algorithms   []string     `yaml:"algorithms" validate:"min=1,unique,dive,oneof=linear_regression decision_tree random_forest gradient_boosting"`
	Linear       LinearConf   `yaml:"linear"`
	Tree         TreeConf     `yaml:"tree"`
	Forest       ForestConf   `yaml:"forest"`
	Boosting     BoostingConf `yaml:"boosting"`
}

// LinearConf configures the linear regression candidate.
type LinearConf struct {
	Ridge float64 `yaml:"ridge" validate:"gte=0"`
}

// TreeConf configures the single decision tree candidate.
type TreeConf struct {
	MaxDepth       int `yaml:"max_depth" validate:"gte=1"`
	MinSamplesLeaf int `yaml:"min_samples_leaf" validate:"gte=1"`
}

// ForestConf configures the random forest candidate.
type ForestConf struct {
	Trees          int      `yaml:"trees" validate:"gte=1"`
	MaxDepth       int      `yaml:"max_depth" validate:"gte=1"`
	MinSamplesLeaf int      `yaml:"min_samples_leaf" validate:"gte=1"`
	MaxFeatures    Fraction `yaml:"max_features" validate:"gt=0,lte=1"`
}

// BoostingConf configures the gradient boosting candidate.
type BoostingConf struct {
	Estimators     int      `yaml:"estimators" validate:"gte=1"`
	LearningRate   float64  `yaml:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth       int      `yaml:"max_depth" validate:"gte=1"`
	MinSamplesLeaf int      `yaml:"min_samples_leaf" validate:"gte=1"`
	Subsample      Fraction `yaml:"subsample" validate:"gt=0,lte=1"`
}

// Default returns the configuration used when the YAML file leaves a value out.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConf{
			Addr:            ":5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Dataset: DatasetConf{
			Source: "csv",
			Path:   "data/hour.csv",
		},
		Artifacts: ArtifactsConf{Dir: "artifacts"},
		Training: TrainingConf{
			SplitMode:    "random",
			TestFraction: 0.2,
			SplitDate:    "2012-07-01",
			Seed:         42,
			Algorithms:   []string{"linear_regression", "decision_tree", "random_forest", "gradient_boosting"},
			Linear:       LinearConf{Ridge: 1e-6},
			Tree:         TreeConf{MaxDepth: 12, MinSamplesLeaf: 5},
			Forest:       ForestConf{Trees: 50, MaxDepth: 14, MinSamplesLeaf: 2, MaxFeatures: 0.5},
			Boosting:     BoostingConf{Estimators: 150, LearningRate: 0.1, MaxDepth: 5, MinSamplesLeaf: 5, Subsample: 1},
		},
		DBHost:    "localhost",
		DBPort:    "5432",
		DBSSLMode: "disable",
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv loads secrets and overrides from environment variables.
func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"LOG_LEVEL":      &cfg.LogLevel,
		"HTTP_ADDR":      &cfg.HTTP.Addr,
		"DATASET_SOURCE": &cfg.Dataset.Source,
		"DATASET_PATH":   &cfg.Dataset.Path,
		"ARTIFACTS_DIR":  &cfg.Artifacts.Dir,
		"DB_HOST":        &cfg.DBHost,
		"DB_PORT":        &cfg.DBPort,
		"DB_USER":        &cfg.DBUser,
		"DB_PASSWORD":    &cfg.DBPassword,
		"DB_NAME":        &cfg.DBName,
		"DB_SSLMODE":     &cfg.DBSSLMode,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Training.SplitMode == "date" {
		if _, err := time.Parse(time.DateOnly, c.Training.SplitDate); err != nil {
			return fmt.Errorf("invalid config: training.split_date %q: %w", c.Training.SplitDate, err)
		}
	}
	if c.Dataset.Source == "postgres" && c.DBName == "" {
		return fmt.Errorf("invalid config: DB_NAME is required when dataset.source is postgres")
	}
	return nil
}

// DatabaseURL builds the postgres connection string from the DB_* settings.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBUser != "" {
		if c.DBPassword != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPassword)
		} else {
			u.User = url.User(c.DBUser)
		}
	}
	q := url.Values{}
	if c.DBSSLMode != "" {
		q.Set("sslmode", c.DBSSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
