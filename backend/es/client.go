package es

import (
	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mow-search/mow/backend"
)

func newClient(cfg *backend.Config) (*elasticsearch.TypedClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}

	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewTypedClient(esCfg)

	return client, err
}
