package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/drip/pkg/config"
)

type sample struct {
	Name    string        `env:"DRIP_CFG_NAME" envDefault:"dripd"`
	Workers int           `env:"DRIP_CFG_WORKERS" envDefault:"4"`
	Timeout time.Duration `env:"DRIP_CFG_TIMEOUT" envDefault:"5s"`
	Enabled bool          `env:"DRIP_CFG_ENABLED"`
}

type required struct {
	Token string `env:"DRIP_CFG_REQUIRED_TOKEN,required"`
}

type fromFile struct {
	String   string `env:"DRIP_CFG_TEST_STRING"`
	Int      int    `env:"DRIP_CFG_TEST_INT"`
	Shadowed string `env:"DRIP_CFG_TEST_SHADOWED"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := config.Load[sample]()
		require.NoError(t, err)
		assert.Equal(t, "dripd", cfg.Name)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.False(t, cfg.Enabled)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("DRIP_CFG_NAME", "worker")
		t.Setenv("DRIP_CFG_WORKERS", "9")
		t.Setenv("DRIP_CFG_TIMEOUT", "250ms")
		t.Setenv("DRIP_CFG_ENABLED", "true")

		cfg, err := config.Load[sample]()
		require.NoError(t, err)
		assert.Equal(t, sample{Name: "worker", Workers: 9, Timeout: 250 * time.Millisecond, Enabled: true}, cfg)
	})

	t.Run("values are re-read on every call", func(t *testing.T) {
		t.Setenv("DRIP_CFG_WORKERS", "1")
		first, err := config.Load[sample]()
		require.NoError(t, err)

		t.Setenv("DRIP_CFG_WORKERS", "2")
		second, err := config.Load[sample]()
		require.NoError(t, err)

		assert.Equal(t, 1, first.Workers)
		assert.Equal(t, 2, second.Workers)
	})

	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("DRIP_CFG_WORKERS", "many")
		_, err := config.Load[sample]()
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := config.Load[required]()
		assert.ErrorIs(t, err, config.ErrParsingConfig)
		assert.Panics(t, func() { config.MustLoad[required]() })
	})
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("DRIP_CFG_TEST_SHADOWED", "from_process")
	t.Cleanup(func() {
		_ = os.Unsetenv("DRIP_CFG_TEST_STRING")
		_ = os.Unsetenv("DRIP_CFG_TEST_INT")
	})

	require.NoError(t, config.LoadEnv("testdata/.env.test"))

	cfg, err := config.Load[fromFile]()
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.String)
	assert.Equal(t, 7, cfg.Int)
	assert.Equal(t, "from_process", cfg.Shadowed)

	assert.NoError(t, config.LoadEnv())
	assert.ErrorIs(t, config.LoadEnv("testdata/missing.env"), config.ErrLoadingEnvFile)
}
