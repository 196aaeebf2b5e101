// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string `env:"ADDR" envDefault:":8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	// DATABASE_URL selects the Postgres profile store; otherwise profiles
	// are JSON files under ProfileDir.
	DatabaseURL string `env:"DATABASE_URL"`
	ProfileDir  string `env:"PROFILE_DIR" envDefault:"data/players"`

	NarrationAPIKey  string        `env:"NARRATION_API_KEY"`
	NarrationBaseURL string        `env:"NARRATION_BASE_URL" envDefault:"https://api.moonshot.cn/v1"`
	NarrationModel   string        `env:"NARRATION_MODEL" envDefault:"kimi-k2-turbo-preview"`
	NarrationTimeout time.Duration `env:"NARRATION_TIMEOUT" envDefault:"4s"`

	WSIdleTimeout    time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"10m"`
	WSOriginPatterns []string      `env:"WS_ORIGIN_PATTERNS" envSeparator:","`

	// RNGSeed makes dice deterministic across a run; 0 seeds randomly.
	RNGSeed        uint64        `env:"RNG_SEED"`
	CensusInterval time.Duration `env:"CENSUS_INTERVAL" envDefault:"1m"`
}

// Load reads the given dotenv files (".env" when none are named) into the
// process environment, then parses Config. Missing dotenv files are not an
// error; variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
