package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        App        `mapstructure:"app"`
	Gemini     Gemini     `mapstructure:"gemini"`
	Clustering Clustering `mapstructure:"clustering"`
	Quality    Quality    `mapstructure:"quality"`
	Highlights Highlights `mapstructure:"highlights"`
	Output     Output     `mapstructure:"output"`
	Cache      Cache      `mapstructure:"cache"`
}

// App holds general application configuration.
type App struct {
	LogLevel string `mapstructure:"log_level"`
}

// Gemini holds the dense embedding model configuration.
type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int32  `mapstructure:"dimensions"`
	Workers        int    `mapstructure:"workers"` // Parallel embedding requests
}

// Clustering holds the hybrid clustering parameters.
type Clustering struct {
	MinClusterSize   int     `mapstructure:"min_cluster_size"`
	MinSamples       int     `mapstructure:"min_samples"`
	SparseWeight     float64 `mapstructure:"sparse_weight"`     // Lambda for the sparse component
	TargetDimensions int     `mapstructure:"target_dimensions"` // Reduced space width
	SelectionPolicy  string  `mapstructure:"selection_policy"`  // "leaf" or "eom"
	Seed             int64   `mapstructure:"seed"`
}

// Quality holds the acceptance thresholds for the quality gate.
type Quality struct {
	CohesionThreshold float64 `mapstructure:"cohesion_threshold"`
	NoiseThreshold    float64 `mapstructure:"noise_threshold"`
}

// Highlights holds the viral highlight extraction parameters.
type Highlights struct {
	Metric         string `mapstructure:"metric"` // likes, reshares, replies or views
	ViralThreshold int64  `mapstructure:"viral_threshold"`
}

// Output holds artifact output configuration.
type Output struct {
	Directory         string `mapstructure:"directory"`
	MaxMembersPerFile int    `mapstructure:"max_members_per_file"`
	Host              string `mapstructure:"host"` // Host for canonical status URLs
}

// Cache holds the embedding cache configuration.
type Cache struct {
	Directory string `mapstructure:"directory"`
	Enabled   bool   `mapstructure:"enabled"`
}

var globalConfig *Config

// Load reads configuration from file, environment and defaults.
// Search order: explicit file, ./.pulse.yaml, $HOME/.pulse.yaml.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".pulse")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("PULSE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Reset drops the cached configuration. Used by tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("gemini.embedding_model", "gemini-embedding-001")
	viper.SetDefault("gemini.dimensions", 768)
	viper.SetDefault("gemini.workers", 8)

	viper.SetDefault("clustering.min_cluster_size", 5)
	viper.SetDefault("clustering.min_samples", 2)
	viper.SetDefault("clustering.sparse_weight", 0.35)
	viper.SetDefault("clustering.target_dimensions", 10)
	viper.SetDefault("clustering.selection_policy", "leaf")
	viper.SetDefault("clustering.seed", 42)

	viper.SetDefault("quality.cohesion_threshold", 0.05)
	viper.SetDefault("quality.noise_threshold", 0.35)

	viper.SetDefault("highlights.metric", "likes")
	viper.SetDefault("highlights.viral_threshold", 5000)

	viper.SetDefault("output.directory", "data/clusters")
	viper.SetDefault("output.max_members_per_file", 100)
	viper.SetDefault("output.host", "x.com")

	viper.SetDefault("cache.directory", ".pulse-cache")
	viper.SetDefault("cache.enabled", true)
}

func bindEnvironmentVariables() {
	// Gemini key is commonly set without the prefix; accept both.
	_ = viper.BindEnv("gemini.api_key", "PULSE_GEMINI_API_KEY", "GEMINI_API_KEY")
}

func validate(c *Config) error {
	if c.Clustering.MinClusterSize < 2 {
		return fmt.Errorf("clustering.min_cluster_size must be at least 2, got %d", c.Clustering.MinClusterSize)
	}
	if c.Clustering.MinSamples < 1 {
		return fmt.Errorf("clustering.min_samples must be at least 1, got %d", c.Clustering.MinSamples)
	}
	if c.Clustering.SparseWeight < 0 {
		return fmt.Errorf("clustering.sparse_weight must be non-negative, got %g", c.Clustering.SparseWeight)
	}
	if c.Clustering.TargetDimensions < 2 {
		return fmt.Errorf("clustering.target_dimensions must be at least 2, got %d", c.Clustering.TargetDimensions)
	}
	switch c.Clustering.SelectionPolicy {
	case "leaf", "eom":
	default:
		return fmt.Errorf("clustering.selection_policy must be \"leaf\" or \"eom\", got %q", c.Clustering.SelectionPolicy)
	}
	switch c.Highlights.Metric {
	case "likes", "reshares", "replies", "views":
	default:
		return fmt.Errorf("highlights.metric must be one of likes, reshares, replies, views, got %q", c.Highlights.Metric)
	}
	if c.Output.MaxMembersPerFile < 1 {
		return fmt.Errorf("output.max_members_per_file must be positive, got %d", c.Output.MaxMembersPerFile)
	}
	return nil
}
