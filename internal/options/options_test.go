package options

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultsWhenEnvUnset(t *testing.T) {
	os.Unsetenv("BUILD_DIST_DIR")
	os.Unsetenv("ENVIRONMENT")

	opts := Load([]string{"src/index.js"})

	assert.Equal(t, ModeDevelopment, opts.Mode)
	assert.Equal(t, "dist", opts.DefaultTargetOptions.DistDir)
	assert.True(t, opts.DefaultTargetOptions.ShouldScopeHoist)
	assert.Equal(t, []string{"src/index.js"}, opts.Entries)
}

func TestLoadReadsOverrides(t *testing.T) {
	os.Setenv("ENVIRONMENT", "production")
	os.Setenv("BUILD_DIST_DIR", "build-out")
	defer os.Unsetenv("ENVIRONMENT")
	defer os.Unsetenv("BUILD_DIST_DIR")

	opts := Load(nil)

	assert.Equal(t, ModeProduction, opts.Mode)
	assert.Equal(t, "build-out", opts.DefaultTargetOptions.DistDir)
}
