package backend

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Storage selects where an embedded engine keeps its index.
const (
	StorageFile = "file"
	StorageMem  = "mem"
)

// DefaultBatchSize bounds how many documents an update flushes at once.
const DefaultBatchSize = 100

// Config describes one named connection. Engine-specific sections are only
// read by their engine.
type Config struct {
	Engine Kind

	// Bleve.
	Path    string
	Storage string

	// Elasticsearch.
	Addresses []string
	IndexName string
	Username  string
	Password  string

	// Postgres.
	ConnString string

	// SilentlyFail swallows engine errors at the connection layer, logging
	// them and returning empty results instead.
	SilentlyFail bool

	// Debug turns on the connection query log.
	Debug bool

	BatchSize int
}

// Normalize fills defaults and validates the engine section.
func (c *Config) Normalize() error {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	switch c.Engine {
	case Bleve:
		if c.Storage == "" {
			c.Storage = StorageFile
		}
		if c.Storage != StorageFile && c.Storage != StorageMem {
			return fmt.Errorf("invalid bleve storage %q, expected %q or %q", c.Storage, StorageFile, StorageMem)
		}
		if c.Storage == StorageFile && c.Path == "" {
			return fmt.Errorf("bleve file storage requires a path")
		}
	case Elasticsearch:
		if len(c.Addresses) == 0 || c.IndexName == "" {
			return fmt.Errorf("elasticsearch configuration is incomplete: addresses or index name is missing")
		}
	case Postgres:
		if c.ConnString == "" {
			return fmt.Errorf("postgres connection string is not set")
		}
	default:
		return fmt.Errorf("%w %q", ErrUnsupportedEngine, c.Engine)
	}
	return nil
}

// LoadEnv reads a connection config from SEARCH_* environment variables:
// SEARCH_ENGINE, SEARCH_PATH, SEARCH_STORAGE, SEARCH_SILENT, SEARCH_DEBUG,
// SEARCH_BATCH_SIZE, plus ES_ADDRESSES/ES_INDEX_NAME/ES_USERNAME/ES_PASSWORD
// and PG_CONNECTION_STRING for their engines.
func LoadEnv() (*Config, error) {
	engine := Kind(os.Getenv("SEARCH_ENGINE"))
	if engine == "" {
		slog.Error("SEARCH_ENGINE environment variable is not set")
		return nil, fmt.Errorf("SEARCH_ENGINE environment variable is not set")
	}

	cfg := &Config{
		Engine:       engine,
		Path:         os.Getenv("SEARCH_PATH"),
		Storage:      os.Getenv("SEARCH_STORAGE"),
		SilentlyFail: os.Getenv("SEARCH_SILENT") == "true",
		Debug:        os.Getenv("SEARCH_DEBUG") == "true",
		ConnString:   os.Getenv("PG_CONNECTION_STRING"),
		IndexName:    os.Getenv("ES_INDEX_NAME"),
		Username:     os.Getenv("ES_USERNAME"),
		Password:     os.Getenv("ES_PASSWORD"),
	}

	if addrs := os.Getenv("ES_ADDRESSES"); addrs != "" {
		for _, a := range strings.Split(addrs, ",") {
			if trimmed := strings.TrimSpace(a); trimmed != "" {
				cfg.Addresses = append(cfg.Addresses, trimmed)
			}
		}
	}

	if raw := os.Getenv("SEARCH_BATCH_SIZE"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SEARCH_BATCH_SIZE %q: %w", raw, err)
		}
		cfg.BatchSize = size
	}

	if err := cfg.Normalize(); err != nil {
		slog.Error("Invalid search connection configuration", "engine", engine, "error", err)
		return nil, err
	}
	return cfg, nil
}
