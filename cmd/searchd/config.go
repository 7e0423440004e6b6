package main

import (
	"log/slog"
	"os"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/pkg/config/env"
)

type AppConfig struct {
	ENV string
}

func NewAppConfig() *AppConfig {
	return &AppConfig{
		ENV: os.Getenv("ENV"),
	}
}

type SearchdConfig struct {
	Backend     *backend.Config
	Definitions string
}

func (ac *AppConfig) Load() (*SearchdConfig, error) {
	err := env.LoadDotEnv(ac.ENV, "cmd/searchd/.env")
	if err != nil {
		slog.Info("Failed to load .env, continuing with existing environment variables", "error", err)
	}

	cfg, err := backend.LoadEnv()
	if err != nil {
		slog.Error("Failed to load backend configuration from environment", "error", err)
		return nil, err
	}

	definitions := os.Getenv("INDEX_DEFINITIONS")
	if definitions == "" {
		definitions = "indexes.yaml"
	}

	return &SearchdConfig{
		Backend:     cfg,
		Definitions: definitions,
	}, nil
}
