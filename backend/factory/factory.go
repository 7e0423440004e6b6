// Package factory constructs the configured search backend.
package factory

import (
	"context"
	"fmt"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/backend/bleve"
	"github.com/mow-search/mow/backend/es"
	"github.com/mow-search/mow/backend/pg"
	"github.com/mow-search/mow/schema"
)

// New builds the backend named by cfg.Engine and runs its Setup.
func New(ctx context.Context, cfg *backend.Config, s *schema.Schema) (backend.Backend, error) {
	var b backend.Backend
	var err error

	switch cfg.Engine {
	case backend.Bleve:
		b, err = bleve.New(cfg, s)
	case backend.Elasticsearch:
		b, err = es.New(cfg, s)
	case backend.Postgres:
		b, err = pg.New(ctx, cfg, s)
	default:
		return nil, fmt.Errorf("%w %q", backend.ErrUnsupportedEngine, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}

	if err := b.Setup(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("set up %s backend: %w", cfg.Engine, err)
	}
	return b, nil
}
