package config

// Package config provides a reusable loader for the execution engine's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"synnergy-network/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for an engine node. It mirrors
// the structure of the YAML files under cmd/config.
type Config struct {
	Server struct {
		ListenAddr        string `mapstructure:"listen_addr" json:"listen_addr"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
		Burst             int    `mapstructure:"burst" json:"burst"`
	} `mapstructure:"server" json:"server"`

	Protocol struct {
		Major uint32 `mapstructure:"major" json:"major"`
		Minor uint32 `mapstructure:"minor" json:"minor"`
		Patch uint32 `mapstructure:"patch" json:"patch"`
	} `mapstructure:"protocol" json:"protocol"`

	Genesis struct {
		ConfigFile string `mapstructure:"config_file" json:"config_file"`
	} `mapstructure:"genesis" json:"genesis"`

	Executor struct {
		MaxPaymentGas uint64 `mapstructure:"max_payment_gas" json:"max_payment_gas"`
	} `mapstructure:"executor" json:"executor"`

	Storage struct {
		DataDir          string `mapstructure:"data_dir" json:"data_dir"`
		SnapshotInterval int    `mapstructure:"snapshot_interval" json:"snapshot_interval"`
		PruneInterval    int    `mapstructure:"prune_interval" json:"prune_interval"`
		SnapshotCacheSize int   `mapstructure:"snapshot_cache_size" json:"snapshot_cache_size"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, utils.Wrap(err, "load .env")
	}

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SYNN_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SYNN_ENV", ""))
}
