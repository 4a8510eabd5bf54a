// Command linkctl inspects links and switches them on and off. It talks to
// the same storage as the shortener and reads the same configuration.
//
//	linkctl get <slug> [flags]
//	linkctl activate <slug> [flags]
//	linkctl deactivate <slug> [flags]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/mmeshcher/shawty/internal/config"
	"github.com/mmeshcher/shawty/internal/logger"
	"github.com/mmeshcher/shawty/internal/models"
	"github.com/mmeshcher/shawty/internal/repository"
	"github.com/mmeshcher/shawty/internal/service"
)

const usage = "usage: linkctl <get|activate|deactivate> <slug> [flags]"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New(usage)
	}
	command, slug := args[0], args[1]

	cfg, err := config.Parse(args[2:])
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zl.Sync()

	store, err := repository.Open(ctx, cfg.StoreOptions(), zl)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	svc, err := service.NewShortenerService(store, service.Options{
		BaseURL:      cfg.BaseURL,
		SlugLength:   cfg.SlugLength,
		LinkTTL:      cfg.LinkTTL,
		StoreTimeout: cfg.StoreTimeout,
	}, zl)
	if err != nil {
		return err
	}

	return execute(ctx, svc, command, slug, out, zl)
}

func execute(ctx context.Context, svc *service.ShortenerService, command, slug string, out io.Writer, zl *zap.Logger) error {
	switch command {
	case "get":
	case "activate", "deactivate":
		if err := svc.SetActive(ctx, slug, command == "activate"); err != nil {
			return fmt.Errorf("%s %s: %w", command, slug, err)
		}
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	link, err := svc.Stats(ctx, slug)
	if err != nil {
		return fmt.Errorf("get %s: %w", slug, err)
	}

	zl.Debug("Link loaded", zap.String("slug", link.Slug))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(models.ShortenResponse{
		Slug:      link.Slug,
		URL:       link.URL,
		ShortURL:  svc.ShortURL(link.Slug),
		Clicks:    link.Clicks,
		Active:    link.Active,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
	})
}
