//go:build property
// +build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func validConfig() *Config {
	return &Config{
		Pod:         PodConfig{Root: "."},
		Server:      ServerConfig{Host: "localhost", Port: 8080},
		Build:       BuildConfig{OutDir: "build", PoolSize: 1, BatchSize: 300, Threaded: true},
		Cache:       CacheConfig{FileCacheSize: 1024},
		Development: DevelopmentConfig{},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

func TestServerConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ports in range are accepted", prop.ForAll(
		func(port int) bool {
			cfg := validConfig()
			cfg.Server.Port = port
			return !Validate(cfg).HasErrors()
		},
		gen.IntRange(0, 65535),
	))

	properties.Property("ports out of range are rejected", prop.ForAll(
		func(port int) bool {
			cfg := validConfig()
			cfg.Server.Port = 65536 + port
			return Validate(cfg).HasErrors()
		},
		gen.IntRange(0, 100000),
	))

	properties.Property("hostnames are accepted", prop.ForAll(
		func(host string) bool {
			if host == "" || host[0] == '-' || host[len(host)-1] == '-' || len(host) > 63 {
				return true
			}
			cfg := validConfig()
			cfg.Server.Host = host
			return !Validate(cfg).HasErrors()
		},
		gen.RegexMatch(`^[a-zA-Z0-9-]+$`),
	))

	properties.TestingRun(t)
}

func TestBuildConfigProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("relative out dirs are accepted", prop.ForAll(
		func(a, b string) bool {
			cfg := validConfig()
			cfg.Build.OutDir = fmt.Sprintf("%s/%s", a, b)
			return !Validate(cfg).HasErrors()
		},
		gen.RegexMatch(`^[a-z][a-z0-9_]{0,8}$`),
		gen.RegexMatch(`^[a-z][a-z0-9_]{0,8}$`),
	))

	properties.Property("validation is deterministic", prop.ForAll(
		func(batch, pool int) bool {
			cfg := validConfig()
			cfg.Build.BatchSize = batch
			cfg.Build.PoolSize = pool
			first := Validate(cfg)
			second := Validate(cfg)
			return first.Valid == second.Valid && len(first.Errors) == len(second.Errors)
		},
		gen.IntRange(-10, 10),
		gen.IntRange(-10, 10),
	))

	properties.TestingRun(t)
}
