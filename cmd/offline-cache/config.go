package main

import (
	"fmt"
	"os"
	"time"

	offlinecache "github.com/always-cache/offline-cache"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "OFFLINE_CACHE_"

type Config struct {
	// Origin URL to proxy to.
	Origin string `yaml:"origin" env:"ORIGIN"`
	// Hostname of origin, if it differs from the origin URL host.
	Host string `yaml:"host" env:"HOST"`
	// Port to listen on.
	Port int `yaml:"port" env:"PORT"`
	// Cache DB file name, "memory" for an in-memory db.
	DB string `yaml:"db" env:"DB"`
	// Store identifier. Bump it when seeds change.
	Store string `yaml:"store" env:"STORE"`
	// Seeds to cache on install.
	Seeds []string `yaml:"seeds" env:"SEEDS" envSeparator:","`
	// Zero means no timeout.
	NetworkTimeout time.Duration `yaml:"networkTimeout" env:"NETWORK_TIMEOUT"`
}

func defaultConfig() Config {
	return Config{
		Port:  8080,
		DB:    "cache.db",
		Store: offlinecache.DefaultStoreName,
		Seeds: append([]string{}, offlinecache.DefaultSeeds...),
	}
}

// loadConfig applies, in order, the defaults, the config file (if any) and
// OFFLINE_CACHE_* environment variables.
func loadConfig(filename string) (Config, error) {
	config := defaultConfig()
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, fmt.Errorf("parse %s: %w", filename, err)
		}
	}
	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return config, fmt.Errorf("parse env: %w", err)
	}
	return config, nil
}

func (c Config) dbFilename() string {
	if c.DB == "memory" {
		return ""
	}
	return c.DB
}
