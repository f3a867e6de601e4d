// Package apps defines the three managed applications (ComfyUI, AI Toolkit
// and OneTrainer) as supervision specs: install markers, launch commands and
// install/update pipelines, all derived from the loaded manifest.
package apps

import (
	"path/filepath"
	"runtime"

	"github.com/thenullengine/ailab/internal/config"
	"github.com/thenullengine/ailab/internal/supervise"
)

// Specs builds the supervision specs for every managed application in
// presentation order.
func Specs(cfg *config.Config) []supervise.Spec {
	return []supervise.Spec{
		ComfyUI(cfg),
		AIToolkit(cfg),
		OneTrainer(cfg),
	}
}

// venvPython locates the virtualenv interpreter inside an install directory.
func venvPython(installPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(installPath, "venv", "Scripts", "python.exe")
	}
	return filepath.Join(installPath, "venv", "bin", "python")
}

// venvPip locates the virtualenv pip inside an install directory.
func venvPip(installPath string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(installPath, "venv", "Scripts", "pip.exe")
	}
	return filepath.Join(installPath, "venv", "bin", "pip")
}

// script resolves a launcher script shipped by an application, picking the
// platform variant and the interpreter that runs it.
func script(dir, base string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/c", filepath.Join(dir, base+".bat")}
	}
	return []string{"bash", filepath.Join(dir, base+".sh")}
}

// scriptPath is the on-disk artifact checked by install markers.
func scriptPath(dir, base string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(dir, base+".bat")
	}
	return filepath.Join(dir, base+".sh")
}
