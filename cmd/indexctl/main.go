// indexctl manages a search index from the command line: update feeds
// documents in, rebuild wipes and re-feeds, clear deletes by model.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mow-search/mow"
	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/pkg/config/env"
)

// bundle is the JSON document feed: objects grouped by model.
type bundle struct {
	Documents []struct {
		Model   string           `json:"model"`
		Objects []map[string]any `json:"objects"`
	} `json:"documents"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	definitions := fs.String("definitions", "indexes.yaml", "path to the YAML index definitions")
	docs := fs.String("docs", "", "path to a JSON document bundle")
	models := fs.String("models", "", "comma-separated model names (clear)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	if err := env.LoadDotEnv(os.Getenv("ENV"), "cmd/indexctl/.env"); err != nil {
		slog.Info("Skipping .env ...", "error", err)
	}

	cfg, err := backend.LoadEnv()
	if err != nil {
		slog.Error("Failed to load backend configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	conn, err := openConnection(ctx, cfg, *definitions)
	if err != nil {
		slog.Error("Failed to open search connection", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	switch command {
	case "update":
		err = update(ctx, conn, *docs)
	case "rebuild":
		err = rebuild(ctx, conn, *docs)
	case "clear":
		err = clear(ctx, conn, *models)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}

	count, err := conn.Backend().DocCount(ctx)
	if err != nil {
		slog.Error("Failed to count documents", "error", err)
		os.Exit(1)
	}
	slog.Info("Done", "command", command, "documents", count)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: indexctl <update|rebuild|clear> [flags]")
}

func openConnection(ctx context.Context, cfg *backend.Config, definitions string) (*mow.Connection, error) {
	f, err := os.Open(definitions)
	if err != nil {
		return nil, fmt.Errorf("open index definitions: %w", err)
	}
	defer f.Close()

	indexes, err := index.LoadDefinitions(f)
	if err != nil {
		return nil, err
	}
	return mow.Open(ctx, mow.DefaultAlias, cfg, indexes...)
}

func update(ctx context.Context, conn *mow.Connection, docs string) error {
	if docs == "" {
		return fmt.Errorf("update needs -docs")
	}

	b, err := loadBundle(docs)
	if err != nil {
		return err
	}

	for _, group := range b.Documents {
		objs := make([]any, 0, len(group.Objects))
		for _, obj := range group.Objects {
			objs = append(objs, obj)
		}
		if err := conn.Update(ctx, group.Model, objs); err != nil {
			return fmt.Errorf("update %q: %w", group.Model, err)
		}
		slog.Info("Indexed documents", "model", group.Model, "count", len(objs))
	}
	return nil
}

func rebuild(ctx context.Context, conn *mow.Connection, docs string) error {
	if err := conn.Backend().DeleteIndex(ctx); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if err := conn.Backend().Setup(ctx); err != nil {
		return fmt.Errorf("recreate index: %w", err)
	}
	if docs == "" {
		return nil
	}
	return update(ctx, conn, docs)
}

func clear(ctx context.Context, conn *mow.Connection, models string) error {
	var names []string
	if models != "" {
		for _, m := range strings.Split(models, ",") {
			if m = strings.TrimSpace(m); m != "" {
				names = append(names, m)
			}
		}
	}
	return conn.Clear(ctx, names...)
}

func loadBundle(path string) (*bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document bundle: %w", err)
	}
	defer f.Close()

	var b bundle
	if err := json.NewDecoder(f).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode document bundle: %w", err)
	}
	return &b, nil
}
