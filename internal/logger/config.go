// internal/logger/config.go
package logger

import "github.com/rovshanmuradov/memetrader/internal/config"

type Config struct {
	LogFile     string
	MaxSize     int  // мегабайты
	MaxAge      int  // дни
	MaxBackups  int  // количество файлов
	Compress    bool // сжимать ротированные файлы
	Development bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "memetrader.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}

// FromConfig maps the application log section onto rotation settings.
func FromConfig(c config.LogConfig) *Config {
	cfg := DefaultConfig()
	if c.File != "" {
		cfg.LogFile = c.File
	}
	if c.MaxSize > 0 {
		cfg.MaxSize = c.MaxSize
	}
	if c.MaxAge > 0 {
		cfg.MaxAge = c.MaxAge
	}
	if c.MaxBackups > 0 {
		cfg.MaxBackups = c.MaxBackups
	}
	cfg.Compress = c.Compress
	cfg.Development = c.Debug
	return cfg
}
