package main

import "github.com/BurntSushi/toml"

// Config is the optional TOML configuration file accepted via -config.
type Config struct {
	LogPath   string `toml:"log_path"`
	CacheSize int    `toml:"cache_size"`
}

func defaultConfig() Config {
	return Config{LogPath: "beetree.log", CacheSize: 1024}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
