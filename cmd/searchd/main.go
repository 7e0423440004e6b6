// searchd serves the search API over a configured engine: full-text
// search, autocomplete, and similar-document lookup.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/mow-search/mow"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/internal/router"
	"github.com/mow-search/mow/internal/server"
	pkgserver "github.com/mow-search/mow/pkg/server"
)

func main() {
	sCfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("Failed to load server config", "error", err)
		os.Exit(1)
	}

	appCfg, err := NewAppConfig().Load()
	if err != nil {
		slog.Error("Failed to load app configuration", "error", err)
		os.Exit(1)
	}

	indexes, err := loadIndexes(appCfg.Definitions)
	if err != nil {
		slog.Error("Failed to load index definitions", "path", appCfg.Definitions, "error", err)
		os.Exit(1)
	}

	conn, err := mow.Open(context.Background(), mow.DefaultAlias, appCfg.Backend, indexes...)
	if err != nil {
		slog.Error("Failed to open search connection", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	mow.AddConnection(conn)

	e := echo.New()
	e.HideBanner = true

	hc := pkgserver.NewBackendHealthChecker(conn.Backend())
	s := server.NewServer(e, sCfg, hc)

	router.NewSearchRouter(e, conn).Bind()

	slog.Info("searchd listening", "port", sCfg.Port, "engine", appCfg.Backend.Engine)
	if err := s.Start(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func loadIndexes(path string) ([]index.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return index.LoadDefinitions(f)
}
