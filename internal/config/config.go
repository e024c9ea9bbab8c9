package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/annel0/soilsim/internal/erosion"
	"github.com/annel0/soilsim/internal/logging"
	"github.com/annel0/soilsim/internal/noise"
	"github.com/annel0/soilsim/internal/voxel"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается Validate для бессмысленных значений
var ErrInvalidConfig = errors.New("некорректная конфигурация")

// Config корневая структура конфигурации симулятора.
// Читается один раз при старте; изменений на лету нет.
type Config struct {
	Grid      GridConfig      `yaml:"grid"`
	World     WorldConfig     `yaml:"world"`
	Dig       DigConfig       `yaml:"dig"`
	Sim       SimConfig       `yaml:"sim"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type GridConfig struct {
	NX        int     `yaml:"nx"`
	NY        int     `yaml:"ny"`
	NZ        int     `yaml:"nz"`
	VoxelSize float64 `yaml:"voxel_size"`
	SurfaceIY int     `yaml:"surface_iy"`
}

type WorldConfig struct {
	Seed  int64  `yaml:"seed"`
	Noise string `yaml:"noise"` // value | perlin
}

type DigConfig struct {
	Radius     float64 `yaml:"radius"`
	NormalBias float64 `yaml:"normal_bias"` // Доля радиуса, на которую центр уходит в грунт
}

type SimConfig struct {
	SubSteps      int     `yaml:"sub_steps"`
	MaxFrameDelta float64 `yaml:"max_frame_delta"`
	RemeshEvery   int     `yaml:"remesh_every"`
	IdleThreshold int     `yaml:"idle_threshold"`
}

type ServerConfig struct {
	StatusPort int `yaml:"status_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	g := voxel.DefaultGrid()
	return &Config{
		Grid: GridConfig{
			NX:        g.NX,
			NY:        g.NY,
			NZ:        g.NZ,
			VoxelSize: g.VoxelSize,
			SurfaceIY: g.SurfaceIY,
		},
		World: WorldConfig{
			Seed:  voxel.DefaultSeed,
			Noise: noise.KindValue,
		},
		Dig: DigConfig{
			Radius:     voxel.DefaultDigRadius,
			NormalBias: 0.4,
		},
		Sim: SimConfig{
			SubSteps:      4,
			MaxFrameDelta: 1.0 / 30,
			RemeshEvery:   2,
			IdleThreshold: erosion.DefaultParams().IdleThreshold,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "soilsim",
		},
		Logging: LoggingConfig{
			Dir:          "logs",
			ConsoleLevel: "info",
			FileLevel:    "trace",
		},
	}
}

// ToGrid возвращает параметры решётки
func (c *Config) ToGrid() voxel.Grid {
	return voxel.Grid{
		NX:        c.Grid.NX,
		NY:        c.Grid.NY,
		NZ:        c.Grid.NZ,
		VoxelSize: c.Grid.VoxelSize,
		SurfaceIY: c.Grid.SurfaceIY,
	}
}

// ErosionParams возвращает константы осыпания с порогом простоя из конфига
func (c *Config) ErosionParams() erosion.Params {
	p := erosion.DefaultParams()
	if c.Sim.IdleThreshold > 0 {
		p.IdleThreshold = c.Sim.IdleThreshold
	}
	return p
}

// NoiseFactory возвращает генератор шума, выбранный в конфиге
func (c *Config) NoiseFactory() (noise.Factory, error) {
	return noise.FactoryByName(c.World.Noise)
}

// LoggingOptions переводит секцию logging в настройки логгера
func (c *Config) LoggingOptions() (logging.Options, error) {
	console, err := logging.ParseLevel(c.Logging.ConsoleLevel)
	if err != nil {
		return logging.Options{}, err
	}
	file, err := logging.ParseLevel(c.Logging.FileLevel)
	if err != nil {
		return logging.Options{}, err
	}
	return logging.Options{
		Dir:          c.Logging.Dir,
		ConsoleLevel: console,
		FileLevel:    file,
	}, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if err := c.ToGrid().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.NoiseFactory(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.LoggingOptions(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Dig.Radius <= 0 {
		return fmt.Errorf("%w: dig.radius must be positive, got %g", ErrInvalidConfig, c.Dig.Radius)
	}
	if c.Dig.NormalBias < 0 || c.Dig.NormalBias > 1 {
		return fmt.Errorf("%w: dig.normal_bias must be in [0, 1], got %g", ErrInvalidConfig, c.Dig.NormalBias)
	}
	if c.Sim.SubSteps < 1 {
		return fmt.Errorf("%w: sim.sub_steps must be at least 1, got %d", ErrInvalidConfig, c.Sim.SubSteps)
	}
	if c.Sim.MaxFrameDelta <= 0 {
		return fmt.Errorf("%w: sim.max_frame_delta must be positive, got %g", ErrInvalidConfig, c.Sim.MaxFrameDelta)
	}
	if c.Sim.RemeshEvery < 1 {
		return fmt.Errorf("%w: sim.remesh_every must be at least 1, got %d", ErrInvalidConfig, c.Sim.RemeshEvery)
	}
	if c.Sim.IdleThreshold < 0 {
		return fmt.Errorf("%w: sim.idle_threshold must not be negative, got %d", ErrInvalidConfig, c.Sim.IdleThreshold)
	}
	if c.Server.StatusPort < 0 || c.Server.StatusPort > 65535 {
		return fmt.Errorf("%w: server.status_port out of range: %d", ErrInvalidConfig, c.Server.StatusPort)
	}
	return nil
}

// GetStatusPort возвращает порт сервера состояния с поддержкой fallback значений
func (s *ServerConfig) GetStatusPort() int {
	return getPortWithEnvFallback(s.StatusPort, "SOIL_STATUS_PORT", 8090)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV SOIL_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SOIL_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан, используем дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault читает конфиг, а если он не задан, возвращает Default()
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return Default(), nil
	}
	return cfg, nil
}
