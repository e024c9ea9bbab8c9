package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/noise"
	"github.com/annel0/soilsim/internal/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soilsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, voxel.DefaultGrid(), cfg.ToGrid())
	assert.Equal(t, int64(42), cfg.World.Seed)
	assert.InDelta(t, 0.07, cfg.Dig.Radius, 1e-12)
	assert.Equal(t, 4, cfg.Sim.SubSteps)
	assert.Equal(t, 60, cfg.ErosionParams().IdleThreshold)
}

func TestLoadWithoutPath(t *testing.T) {
	t.Setenv("SOIL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg, "без пути и переменной окружения конфига нет")

	cfg, err = LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
grid:
  nx: 32
  nz: 32
world:
  seed: 7
  noise: perlin
sim:
  idle_threshold: 10
logging:
  console_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 32, cfg.Grid.NX)
	assert.Equal(t, voxel.DefaultNY, cfg.Grid.NY, "незаданные поля берутся из значений по умолчанию")
	assert.Equal(t, int64(7), cfg.World.Seed)
	assert.Equal(t, 10, cfg.ErosionParams().IdleThreshold)

	f, err := cfg.NoiseFactory()
	require.NoError(t, err)
	assert.IsType(t, &noise.Perlin{}, f(1))

	opts, err := cfg.LoggingOptions()
	require.NoError(t, err)
	assert.Equal(t, logging.DEBUG, opts.ConsoleLevel)
	assert.Equal(t, "logs", opts.Dir)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "world:\n  seed: 99\n")
	t.Setenv("SOIL_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, int64(99), cfg.World.Seed)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "grid: [1, 2"))
	assert.Error(t, err, "битый YAML")

	_, err = Load(writeConfig(t, "grid:\n  surface_iy: 100\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"нулевой радиус":      func(c *Config) { c.Dig.Radius = 0 },
		"смещение больше 1":   func(c *Config) { c.Dig.NormalBias = 1.5 },
		"нет подшагов":        func(c *Config) { c.Sim.SubSteps = 0 },
		"нулевой кадр":        func(c *Config) { c.Sim.MaxFrameDelta = 0 },
		"нулевой ремеш":       func(c *Config) { c.Sim.RemeshEvery = 0 },
		"отрицательный порог": func(c *Config) { c.Sim.IdleThreshold = -1 },
		"порт вне диапазона":  func(c *Config) { c.Server.StatusPort = 70000 },
		"неизвестный шум":     func(c *Config) { c.World.Noise = "simplex" },
		"неизвестный уровень": func(c *Config) { c.Logging.FileLevel = "loud" },
		"пустая решётка":      func(c *Config) { c.Grid.NX = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestStatusPortFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("SOIL_STATUS_PORT", "")
	assert.Equal(t, 8090, s.GetStatusPort())

	t.Setenv("SOIL_STATUS_PORT", "9100")
	assert.Equal(t, 9100, s.GetStatusPort())

	t.Setenv("SOIL_STATUS_PORT", "abc")
	assert.Equal(t, 8090, s.GetStatusPort())

	s.StatusPort = 8181
	assert.Equal(t, 8181, s.GetStatusPort(), "порт из конфига важнее окружения")
}
