// Package config loads segweaver settings. Environment variables
// (SEGWEAVER_*) override the YAML file, which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"segweaver/internal/cluster"
	"segweaver/internal/logging"
	"segweaver/internal/segment"
)

// EnvPrefix prefixes every environment override, e.g.
// SEGWEAVER_SEGMENT_ALGORITHM.
const EnvPrefix = "SEGWEAVER"

type Config struct {
	Data      DataConfig     `mapstructure:"data"`
	PCA       PCAConfig      `mapstructure:"pca"`
	Segment   SegmentConfig  `mapstructure:"segment"`
	ModelName string         `mapstructure:"model_name"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Registry  RegistryConfig `mapstructure:"registry"`
	Log       logging.Config `mapstructure:"log"`
	StateDir  string         `mapstructure:"state_dir"`
}

type DataConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	// IndexColumn drops the first input column as a row index.
	IndexColumn bool `mapstructure:"index_column"`
}

type PCAConfig struct {
	NComponents int      `mapstructure:"n_components"`
	Columns     []string `mapstructure:"columns"`
}

type SegmentConfig struct {
	Algorithm string  `mapstructure:"algorithm"`
	Metric    string  `mapstructure:"metric"`
	KMin      int     `mapstructure:"k_min"`
	KMax      int     `mapstructure:"k_max"`
	Seed      uint64  `mapstructure:"seed"`
	Restarts  int     `mapstructure:"restarts"`
	MaxIter   int     `mapstructure:"max_iter"`
	Gamma     float64 `mapstructure:"gamma"`
	Tolerance float64 `mapstructure:"tolerance"`
}

type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // file | memory | redis
	Dir      string        `mapstructure:"dir"`
	RedisURL string        `mapstructure:"redis_url"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RegistryConfig struct {
	Backend string `mapstructure:"backend"` // file | postgres
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	seg := segment.DefaultConfig()
	v.SetDefault("data.input", "data/intermediate/processed.csv")
	v.SetDefault("data.output", "data/final/segmented.csv")
	v.SetDefault("data.index_column", false)
	v.SetDefault("pca.n_components", seg.NComponents)
	v.SetDefault("pca.columns", seg.Columns)
	v.SetDefault("segment.algorithm", seg.Algorithm)
	v.SetDefault("segment.metric", seg.Metric)
	v.SetDefault("segment.k_min", seg.KRange[0])
	v.SetDefault("segment.k_max", seg.KRange[len(seg.KRange)-1])
	v.SetDefault("segment.seed", seg.Cluster.Seed)
	v.SetDefault("segment.restarts", seg.Cluster.Restarts)
	v.SetDefault("segment.max_iter", seg.Cluster.MaxIter)
	v.SetDefault("segment.gamma", seg.Cluster.Gamma)
	v.SetDefault("segment.tolerance", seg.Tolerance)
	v.SetDefault("model_name", seg.ModelName)
	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", ".segweaver/cache")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.prefix", "segweaver:artifact:")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("registry.backend", "file")
	v.SetDefault("registry.dir", ".segweaver/models")
	v.SetDefault("registry.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file", "logs/segweaver.log")
	v.SetDefault("state_dir", ".segweaver")
}

// Load reads configuration. When path is empty, segweaver.yaml is looked up
// in the working directory and ./config, and a missing file is not an error.
// An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("segweaver")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that can be checked without data. Algorithm,
// metric and k range semantics are left to the pipeline, which reports them
// with their own error kinds.
func (c *Config) Validate() error {
	var errs []error
	if c.Data.Input == "" {
		errs = append(errs, errors.New("data.input is required"))
	}
	if c.PCA.NComponents != len(c.PCA.Columns) {
		errs = append(errs, fmt.Errorf("pca.columns has %d names for %d components", len(c.PCA.Columns), c.PCA.NComponents))
	}
	if c.Segment.KMax < c.Segment.KMin {
		errs = append(errs, fmt.Errorf("segment.k_max=%d is below segment.k_min=%d", c.Segment.KMax, c.Segment.KMin))
	}
	switch c.Cache.Backend {
	case "memory":
	case "file":
		if c.Cache.Dir == "" {
			errs = append(errs, errors.New("cache.dir is required for the file backend"))
		}
	case "redis":
		if c.Cache.RedisURL == "" {
			errs = append(errs, errors.New("cache.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend %q", c.Cache.Backend))
	}
	switch c.Registry.Backend {
	case "file":
		if c.Registry.Dir == "" {
			errs = append(errs, errors.New("registry.dir is required for the file backend"))
		}
	case "postgres":
		if c.Registry.DSN == "" {
			errs = append(errs, errors.New("registry.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry.backend %q", c.Registry.Backend))
	}
	if c.StateDir == "" {
		errs = append(errs, errors.New("state_dir is required"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SegmentConfig returns the pipeline parameters.
func (c *Config) SegmentConfig() segment.Config {
	return segment.Config{
		NComponents: c.PCA.NComponents,
		Columns:     append([]string(nil), c.PCA.Columns...),
		Algorithm:   c.Segment.Algorithm,
		Metric:      c.Segment.Metric,
		KRange:      segment.KRange(c.Segment.KMin, c.Segment.KMax),
		ModelName:   c.ModelName,
		Cluster: cluster.Options{
			Seed:     c.Segment.Seed,
			Restarts: c.Segment.Restarts,
			MaxIter:  c.Segment.MaxIter,
			Gamma:    c.Segment.Gamma,
		},
		Tolerance: c.Segment.Tolerance,
	}
}

// Params flattens the pipeline parameters for the run ledger.
func (c *Config) Params() map[string]string {
	return map[string]string{
		"data.input":        c.Data.Input,
		"pca.n_components":  strconv.Itoa(c.PCA.NComponents),
		"pca.columns":       strings.Join(c.PCA.Columns, ","),
		"segment.algorithm": c.Segment.Algorithm,
		"segment.metric":    c.Segment.Metric,
		"segment.k_min":     strconv.Itoa(c.Segment.KMin),
		"segment.k_max":     strconv.Itoa(c.Segment.KMax),
		"segment.seed":      strconv.FormatUint(c.Segment.Seed, 10),
		"segment.tolerance": strconv.FormatFloat(c.Segment.Tolerance, 'g', -1, 64),
		"model_name":        c.ModelName,
	}
}
