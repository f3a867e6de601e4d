package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a manifest from the provided path, expands environment
// references, resolves relative paths against the manifest directory and
// validates the result against the embedded schema.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	var cfg Config
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}

	cfg.BaseDir = filepath.Dir(absPath)
	expand(&cfg)
	cfg.ApplyDefaults()
	resolvePaths(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &cfg, nil
}

// Default returns the config used when no manifest exists on disk: every
// service rooted under dir.
func Default(dir string) *Config {
	cfg := &Config{BaseDir: dir}
	cfg.ApplyDefaults()
	resolvePaths(cfg)
	return cfg
}

func expand(cfg *Config) {
	for _, field := range []*string{
		&cfg.ComfyUI.InstallParent, &cfg.ComfyUI.UserDir, &cfg.ComfyUI.OutputDir,
		&cfg.ComfyUI.InputDir, &cfg.ComfyUI.ExtraModelPaths,
		&cfg.AIToolkit.InstallParent, &cfg.OneTrainer.InstallParent,
	} {
		*field = os.ExpandEnv(*field)
	}
}

func resolvePaths(cfg *Config) {
	for _, field := range []*string{
		&cfg.ComfyUI.InstallParent, &cfg.ComfyUI.UserDir, &cfg.ComfyUI.OutputDir,
		&cfg.ComfyUI.InputDir, &cfg.ComfyUI.ExtraModelPaths,
		&cfg.AIToolkit.InstallParent, &cfg.OneTrainer.InstallParent,
	} {
		if *field == "" || filepath.IsAbs(*field) {
			continue
		}
		*field = filepath.Clean(filepath.Join(cfg.BaseDir, *field))
	}
}
