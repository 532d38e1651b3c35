// Package config provides configuration management for grow using Viper for
// flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration file is .grow.yml. Environment variables with the GROW_
// prefix override file values (GROW_SERVER_PORT, GROW_BUILD_OUT_DIR) and a
// .env file in the working directory is loaded first, so it can provide them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// File names and prefixes.
const (
	FileName  = ".grow"
	EnvPrefix = "GROW"
	EnvFile   = ".env"
)

type Config struct {
	Pod         PodConfig         `mapstructure:"pod"`
	Server      ServerConfig      `mapstructure:"server"`
	Build       BuildConfig       `mapstructure:"build"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Development DevelopmentConfig `mapstructure:"development"`
	Log         LogConfig         `mapstructure:"log"`
}

type PodConfig struct {
	// Root is the pod directory on disk.
	Root string `mapstructure:"root"`
	// Env is matched by "@env.<name>" keys.
	Env         string `mapstructure:"env"`
	Fingerprint string `mapstructure:"fingerprint"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type BuildConfig struct {
	OutDir    string `mapstructure:"out_dir"`
	PoolSize  int    `mapstructure:"pool_size"`
	BatchSize int    `mapstructure:"batch_size"`
	Threaded  bool   `mapstructure:"threaded"`
	Workers   int    `mapstructure:"workers"`
}

type CacheConfig struct {
	// Persist loads caches from and writes them to the pod control directory.
	Persist       bool `mapstructure:"persist"`
	FileCacheSize int  `mapstructure:"file_cache_size"`
}

type DevelopmentConfig struct {
	// UI injects the dev banner and reload client into rendered pages.
	UI       bool          `mapstructure:"ui"`
	Debounce time.Duration `mapstructure:"debounce"`
	Ignore   []string      `mapstructure:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("pod.root", ".")
	v.SetDefault("pod.env", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("build.out_dir", "build")
	v.SetDefault("build.pool_size", 1)
	v.SetDefault("build.batch_size", 300)
	v.SetDefault("build.threaded", true)
	v.SetDefault("build.workers", 0)
	v.SetDefault("cache.persist", true)
	v.SetDefault("cache.file_cache_size", 1024)
	v.SetDefault("development.ui", true)
	v.SetDefault("development.debounce", 300*time.Millisecond)
	v.SetDefault("development.ignore", []string{".git", "node_modules", "build"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init prepares the global viper instance: defaults, env binding, the .env
// file and the configuration file. cfgFile overrides the search for
// .grow.yml; GROW_CONFIG_FILE is consulted when it is empty. A missing
// configuration file is not an error.
func Init(cfgFile string) (string, error) {
	return InitViper(viper.GetViper(), cfgFile)
}

// InitViper is Init for a given viper instance.
func InitViper(v *viper.Viper, cfgFile string) (string, error) {
	if err := LoadEnvFile(EnvFile); err != nil {
		return "", err
	}
	SetDefaults(v)

	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case os.Getenv(EnvPrefix+"_CONFIG_FILE") != "":
		v.SetConfigFile(os.Getenv(EnvPrefix + "_CONFIG_FILE"))
	default:
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("read config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// LoadEnvFile loads variables from the given dotenv files without overriding
// ones already set. Missing files are skipped.
func LoadEnvFile(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load decodes and validates the global viper configuration.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through env vars arrive as a single string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("development.ignore") && len(config.Development.Ignore) == 0 {
		config.Development.Ignore = v.GetStringSlice("development.ignore")
	}

	if result := Validate(&config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", result)
	}
	return &config, nil
}

// Address returns the server listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
