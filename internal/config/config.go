package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix - префикс переменных окружения, например BLOCKBODIES_FRAMES
const EnvPrefix = "BLOCKBODIES"

// Заготовки тел, которые можно собрать без файла
const (
	PresetHumanoid = "humanoid"
	PresetWorm     = "worm"
)

// Config содержит настройки прогона скелетных тел
type Config struct {
	// Общие настройки
	LogLevel string `mapstructure:"log_level"`

	// Источник тела: файл или встроенная заготовка
	BodyPath     string `mapstructure:"body_path"`
	BodyDir      string `mapstructure:"body_dir"`
	Preset       string `mapstructure:"preset"`
	WormSegments int    `mapstructure:"worm_segments"`

	// Настройки симуляции
	Frames     int      `mapstructure:"frames"`
	TargetFPS  int      `mapstructure:"target_fps"`
	SeverParts []string `mapstructure:"sever_parts"`

	// Куда сохранить итоговую позу
	OutputPath string `mapstructure:"output_path"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		Preset:       PresetHumanoid,
		WormSegments: 8,
		Frames:       120,
		TargetFPS:    60,
	}
}

// Load загружает конфигурацию из файла и переменных окружения.
// Пустой путь означает только значения по умолчанию и окружение.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save сохраняет конфигурацию в файл; формат определяется по расширению
func (c *Config) Save(path string) error {
	v := viper.New()
	v.Set("log_level", c.LogLevel)
	v.Set("body_path", c.BodyPath)
	v.Set("body_dir", c.BodyDir)
	v.Set("preset", c.Preset)
	v.Set("worm_segments", c.WormSegments)
	v.Set("frames", c.Frames)
	v.Set("target_fps", c.TargetFPS)
	v.Set("sever_parts", c.SeverParts)
	v.Set("output_path", c.OutputPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config %q: %w", path, err)
	}
	return nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.BodyPath == "" {
		switch c.Preset {
		case PresetHumanoid:
		case PresetWorm:
			if c.WormSegments < 1 {
				errs = append(errs, fmt.Errorf("worm_segments must be positive, got %d", c.WormSegments))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown preset %q", c.Preset))
		}
	}
	if c.Frames < 0 {
		errs = append(errs, fmt.Errorf("frames must not be negative, got %d", c.Frames))
	}
	if c.TargetFPS <= 0 {
		errs = append(errs, fmt.Errorf("target_fps must be positive, got %d", c.TargetFPS))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SlogLevel возвращает уровень логирования
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// DeltaTime возвращает длительность кадра в секундах
func (c *Config) DeltaTime() float64 {
	return 1 / float64(c.TargetFPS)
}

// newViper создает viper со значениями по умолчанию и привязкой к окружению
func newViper() *viper.Viper {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("body_path", def.BodyPath)
	v.SetDefault("body_dir", def.BodyDir)
	v.SetDefault("preset", def.Preset)
	v.SetDefault("worm_segments", def.WormSegments)
	v.SetDefault("frames", def.Frames)
	v.SetDefault("target_fps", def.TargetFPS)
	v.SetDefault("output_path", def.OutputPath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// У списка нет значения по умолчанию, поэтому переменную окружения привязываем явно
	_ = v.BindEnv("sever_parts")
	return v
}
