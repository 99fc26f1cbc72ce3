package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/moffa90/go-28c256/protocol"
	"github.com/moffa90/go-28c256/transport"
)

// Config is the effective eepromctl configuration.
type Config struct {
	Port             string
	BaudRate         int
	ReadTimeout      time.Duration
	ResponseTimeout  time.Duration
	EraseTimeout     time.Duration
	SyncAttempts     int
	USBVID           string
	USBPID           string
	VerifyAfterWrite bool
	LogLevel         string
	MetricsFile      string
}

func defaultConfig() Config {
	return Config{
		BaudRate:        protocol.DefaultBaudRate,
		ReadTimeout:     200 * time.Millisecond,
		ResponseTimeout: 2 * time.Second,
		EraseTimeout:    30 * time.Second,
		SyncAttempts:    3,
		USBVID:          transport.DefaultVID,
		USBPID:          transport.DefaultPID,
		LogLevel:        "info",
	}
}

type fileConfig struct {
	Port             string `toml:"port"`
	BaudRate         int    `toml:"baud_rate"`
	ReadTimeout      string `toml:"read_timeout"`
	ResponseTimeout  string `toml:"response_timeout"`
	EraseTimeout     string `toml:"erase_timeout"`
	SyncAttempts     int    `toml:"sync_attempts"`
	USBVID           string `toml:"usb_vid"`
	USBPID           string `toml:"usb_pid"`
	VerifyAfterWrite bool   `toml:"verify_after_write"`
	LogLevel         string `toml:"log_level"`
	MetricsFile      string `toml:"metrics_file"`
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}

	if meta.IsDefined("baud_rate") {
		if raw.BaudRate <= 0 {
			return Config{}, fmt.Errorf("baud_rate must be positive, got %d", raw.BaudRate)
		}
		cfg.BaudRate = raw.BaudRate
	}

	durations := []struct {
		key string
		dst *time.Duration
		val string
	}{
		{"read_timeout", &cfg.ReadTimeout, raw.ReadTimeout},
		{"response_timeout", &cfg.ResponseTimeout, raw.ResponseTimeout},
		{"erase_timeout", &cfg.EraseTimeout, raw.EraseTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v <= 0 {
			return Config{}, fmt.Errorf("%s must be positive, got %v", d.key, v)
		}
		*d.dst = v
	}

	if meta.IsDefined("sync_attempts") {
		if raw.SyncAttempts <= 0 {
			return Config{}, fmt.Errorf("sync_attempts must be positive, got %d", raw.SyncAttempts)
		}
		cfg.SyncAttempts = raw.SyncAttempts
	}

	if meta.IsDefined("usb_vid") {
		cfg.USBVID = normalizeUSBID(raw.USBVID)
	}

	if meta.IsDefined("usb_pid") {
		cfg.USBPID = normalizeUSBID(raw.USBPID)
	}

	if meta.IsDefined("verify_after_write") {
		cfg.VerifyAfterWrite = raw.VerifyAfterWrite
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if meta.IsDefined("metrics_file") {
		cfg.MetricsFile = strings.TrimSpace(raw.MetricsFile)
	}

	return cfg, nil
}

// normalizeUSBID strips a 0x prefix and upper-cases the hex digits, the
// form the port enumerator reports.
func normalizeUSBID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.ToUpper(s)
}
