// Package options loads the per-build Options struct (spec §6) from .env
// files and the process environment, following the teacher's main()
// pattern of godotenv.Load() before reading os.Getenv.
package options

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/apex-build/corebuild/internal/logging"
)

// Mode is the build mode (spec §6).
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// DefaultTargetOptions are the fallback target settings applied when a
// target descriptor doesn't specify them (spec §6).
type DefaultTargetOptions struct {
	DistDir          string
	OutputFormat     string
	ShouldOptimize   bool
	ShouldScopeHoist bool
	IsLibrary        bool
	SourceMaps       bool
	Engines          map[string]string
	PublicURL        string
}

// FeatureFlags gates optional behavior, including the two optional cache
// tiers this core adds beyond the bare embedded KV store (SPEC_FULL §4.9).
type FeatureFlags struct {
	RedisCacheTier bool
	S3LargeBlobTier bool
	Tracing         bool
}

// Options is the struct passed once per build (spec §6).
type Options struct {
	Entries []string
	Mode    Mode
	Env     map[string]string
	LogLevel string

	ConfigPath     string
	FallbackConfig string

	DefaultTargetOptions DefaultTargetOptions
	Targets              []string

	FeatureFlags FeatureFlags

	// SharedBundleMinSize and SharedBundleMaxParallelRequests resolve the
	// Open Question in spec §9 about shared-bundle promotion policy (see
	// SPEC_FULL §4.7 and DESIGN.md). The partitioner applies only
	// SharedBundleMinSize; SharedBundleMaxParallelRequests is passed to it
	// but not consulted.
	SharedBundleMinSize             int64
	SharedBundleMaxParallelRequests int
}

// Load builds an Options value from a .env file (if present) layered under
// the process environment, matching the teacher's main() sequence:
// godotenv.Load() then os.Getenv reads, falling back quietly when no .env
// file exists.
func Load(entries []string) Options {
	if err := godotenv.Load(); err != nil {
		logging.S().Debugw("options: no .env file found, using process environment", "error", err)
	}

	opts := Options{
		Entries:  entries,
		Mode:     modeFromEnv(),
		Env:      snapshotEnv(),
		LogLevel: getEnvDefault("LOG_LEVEL", "info"),

		ConfigPath:     os.Getenv("BUILD_CONFIG_PATH"),
		FallbackConfig: os.Getenv("BUILD_FALLBACK_CONFIG_PATH"),

		DefaultTargetOptions: DefaultTargetOptions{
			DistDir:          getEnvDefault("BUILD_DIST_DIR", "dist"),
			OutputFormat:     getEnvDefault("BUILD_OUTPUT_FORMAT", "esmodule"),
			ShouldOptimize:   getEnvBool("BUILD_OPTIMIZE", false),
			ShouldScopeHoist: getEnvBool("BUILD_SCOPE_HOIST", true),
			IsLibrary:        getEnvBool("BUILD_IS_LIBRARY", false),
			SourceMaps:       getEnvBool("BUILD_SOURCE_MAPS", true),
			PublicURL:        getEnvDefault("BUILD_PUBLIC_URL", "/"),
		},

		FeatureFlags: FeatureFlags{
			RedisCacheTier:  getEnvBool("BUILD_REDIS_CACHE_TIER", false),
			S3LargeBlobTier: getEnvBool("BUILD_S3_LARGE_BLOB_TIER", false),
			Tracing:         getEnvBool("BUILD_TRACING", false),
		},

		SharedBundleMinSize:             int64(getEnvInt("BUILD_SHARED_BUNDLE_MIN_SIZE", 1024)),
		SharedBundleMaxParallelRequests: getEnvInt("BUILD_SHARED_BUNDLE_MAX_PARALLEL", 4),
	}

	return opts
}

func modeFromEnv() Mode {
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "production") {
		return ModeProduction
	}
	return ModeDevelopment
}

func snapshotEnv() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
