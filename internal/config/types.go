package config

import (
	"fmt"
	"path/filepath"
)

// Config is the persisted manifest consumed by the controller: install
// locations, per-service launch options and local UI addresses. The core
// treats it as opaque input; nothing here is written back at runtime.
type Config struct {
	// Python is the interpreter used to create virtual environments during
	// installs.
	Python string `yaml:"python"`

	ComfyUI    ComfyUI    `yaml:"comfyui"`
	AIToolkit  AIToolkit  `yaml:"aitoolkit"`
	OneTrainer OneTrainer `yaml:"onetrainer"`

	// BaseDir is the directory the manifest was loaded from. Relative
	// paths resolve against it.
	BaseDir string `yaml:"-"`
}

// ComfyUI holds the settings for the ComfyUI service.
type ComfyUI struct {
	// InstallParent is the directory the ComfyUI checkout is created in.
	InstallParent string `yaml:"installParent"`
	UserDir       string `yaml:"userDir"`
	OutputDir     string `yaml:"outputDir"`
	InputDir      string `yaml:"inputDir"`
	// ExtraModelPaths optionally points at a model-paths manifest copied
	// into the checkout before each start.
	ExtraModelPaths string `yaml:"extraModelPaths"`
	// QuickInstall skips the optional custom-node steps.
	QuickInstall bool   `yaml:"quickInstall"`
	VRAMMode     string `yaml:"vramMode"`
	URL          string `yaml:"url"`
}

// AIToolkit holds the settings for the AI Toolkit service.
type AIToolkit struct {
	InstallParent string `yaml:"installParent"`
	URL           string `yaml:"url"`
}

// OneTrainer holds the settings for the OneTrainer service.
type OneTrainer struct {
	InstallParent string `yaml:"installParent"`
	URL           string `yaml:"url"`
}

var vramModes = []string{"normalvram", "highvram", "lowvram", "novram"}

// ApplyDefaults fills unset fields. Install parents default to the manifest
// directory; the ComfyUI data directories default to siblings of the
// checkout.
func (c *Config) ApplyDefaults() {
	if c.Python == "" {
		c.Python = "python3"
	}
	if c.ComfyUI.InstallParent == "" {
		c.ComfyUI.InstallParent = c.BaseDir
	}
	if c.ComfyUI.UserDir == "" {
		c.ComfyUI.UserDir = filepath.Join(c.ComfyUI.InstallParent, "user")
	}
	if c.ComfyUI.OutputDir == "" {
		c.ComfyUI.OutputDir = filepath.Join(c.ComfyUI.InstallParent, "output")
	}
	if c.ComfyUI.InputDir == "" {
		c.ComfyUI.InputDir = filepath.Join(c.ComfyUI.InstallParent, "input")
	}
	if c.ComfyUI.VRAMMode == "" {
		c.ComfyUI.VRAMMode = "normalvram"
	}
	if c.ComfyUI.URL == "" {
		c.ComfyUI.URL = "http://127.0.0.1:8188"
	}
	if c.AIToolkit.InstallParent == "" {
		c.AIToolkit.InstallParent = c.BaseDir
	}
	if c.AIToolkit.URL == "" {
		c.AIToolkit.URL = "http://localhost:8675"
	}
	if c.OneTrainer.InstallParent == "" {
		c.OneTrainer.InstallParent = c.BaseDir
	}
}

// Validate rejects values the services cannot start with.
func (c *Config) Validate() error {
	valid := false
	for _, mode := range vramModes {
		if c.ComfyUI.VRAMMode == mode {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("comfyui.vramMode: unknown mode %q", c.ComfyUI.VRAMMode)
	}
	return nil
}
