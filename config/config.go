package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config collects everything the daemon reads at startup. Fields left
// out of the file keep their defaults.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Emulator EmulatorConfig `toml:"emulator"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`

	// Origins are regexp patterns matched against the Origin header.
	// Reloadable at runtime via the watcher.
	Origins []string `toml:"origins"`
}

type LogConfig struct {
	File    string `toml:"file"`
	Verbose bool   `toml:"verbose"`
}

type EmulatorConfig struct {
	Ports []int `toml:"ports"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: "127.0.0.1:21327",
			Origins: []string{
				`^https?://localhost(:\d+)?$`,
				`^https?://127\.0\.0\.1(:\d+)?$`,
			},
		},
		Log: LogConfig{
			File:    "",
			Verbose: false,
		},
		Emulator: EmulatorConfig{
			Ports: nil,
		},
	}
}

// Load reads the file into a fresh default Config. A missing file is
// not an error, it just means defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return toml.NewEncoder(f).Encode(cfg)
}
