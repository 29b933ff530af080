// Command corebuild drives one build of the configured entries and exits.
// The core never embeds plugin implementations (spec §1 Non-goals), so a
// real deployment links a host binary that imports this package's
// internal/build, populates a *config.Registry with its own
// resolver/transformer/packager implementations, and calls Builder.Build
// directly — this command is the thin reference wiring for running that
// same pipeline from a shell, with an empty registry a caller is expected
// to replace.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex-build/corebuild/internal/build"
	"github.com/apex-build/corebuild/internal/cache"
	"github.com/apex-build/corebuild/internal/config"
	"github.com/apex-build/corebuild/internal/fs"
	"github.com/apex-build/corebuild/internal/logging"
	"github.com/apex-build/corebuild/internal/options"
	"github.com/apex-build/corebuild/internal/tracing"
)

func main() {
	logging.Init()
	defer logging.Sync()

	if len(os.Args) < 2 {
		log.Fatal("usage: corebuild <package.json path> [entry...]")
	}
	packageJSONPath := os.Args[1]
	entries := os.Args[2:]
	if len(entries) == 0 {
		log.Fatal("corebuild: at least one entry file is required")
	}

	opts := options.Load(entries)
	logging.S().Infow("corebuild starting", "mode", opts.Mode, "entries", entries)

	if opts.FeatureFlags.Tracing {
		tracing.Init()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logging.S().Warnw("tracing shutdown failed", "error", err)
			}
		}()
	}

	var cacheStore *cache.Cache
	if dsn := os.Getenv("BUILD_CACHE_DSN"); dsn != "" {
		c, err := cache.Open(dsn, cacheOptions(opts))
		if err != nil {
			log.Fatalf("corebuild: opening cache: %v", err)
		}
		defer c.Close()
		cacheStore = c
	}

	registry := config.NewRegistry()
	builder := build.New(fs.NewOSFileSystem(), registry, cacheStore, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logging.S().Infow("received signal, cancelling build", "signal", s.String())
		cancel()
	}()

	result, err := builder.Build(ctx, packageJSONPath, nil)
	if err != nil {
		log.Fatalf("corebuild: build failed: %v", err)
	}

	for _, tr := range result.Targets {
		logging.S().Infow("target built",
			"target", tr.Target.Name,
			"bundles", len(tr.PackagedBundles),
		)
	}
}

func cacheOptions(opts options.Options) cache.Options {
	c := cache.Options{
		CompressMinSize:  4096,
		LargeBlobMinSize: 5 << 20,
		MaxEntries:       50000,
	}
	if opts.FeatureFlags.RedisCacheTier {
		if addr := os.Getenv("BUILD_REDIS_ADDR"); addr != "" {
			c.Redis = cache.NewRedisTier(addr)
		}
	}
	if opts.FeatureFlags.S3LargeBlobTier {
		if bucket := os.Getenv("BUILD_S3_BUCKET"); bucket != "" {
			s3Tier, err := cache.NewS3Tier(context.Background(), bucket)
			if err != nil {
				logging.S().Warnw("s3 cache tier unavailable", "error", err)
			} else {
				c.S3 = s3Tier
			}
		}
	}
	return c
}
