package apps

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/thenullengine/ailab/internal/config"
	"github.com/thenullengine/ailab/internal/installer"
	"github.com/thenullengine/ailab/internal/supervise"
)

const comfyUIRepo = "https://github.com/Comfy-Org/ComfyUI.git"

// Custom nodes cloned on every install.
var comfyUICoreNodes = []string{
	"https://github.com/ltdrdata/ComfyUI-Manager.git",
	"https://github.com/rgthree/rgthree-comfy.git",
	"https://github.com/ltdrdata/ComfyUI-Impact-Pack.git",
	"https://github.com/kijai/ComfyUI-KJNodes.git",
	"https://github.com/lquesada/ComfyUI-Inpaint-CropAndStitch.git",
	"https://github.com/cubiq/ComfyUI_essentials.git",
	"https://github.com/Fannovel16/comfyui_controlnet_aux.git",
	"https://github.com/pythongosssss/ComfyUI-Custom-Scripts.git",
	"https://github.com/ssitu/ComfyUI_UltimateSDUpscale.git",
	"https://github.com/Acly/comfyui-inpaint-nodes.git",
	"https://github.com/Acly/comfyui-tooling-nodes.git",
}

// Optional nodes, skipped by quickInstall.
var comfyUIExtraNodes = []string{
	"https://github.com/city96/ComfyUI-GGUF.git",
	"https://github.com/yolain/ComfyUI-Easy-Use.git",
	"https://github.com/crystian/ComfyUI-Crystools.git",
	"https://github.com/ltdrdata/ComfyUI-Impact-Subpack.git",
	"https://github.com/ltdrdata/ComfyUI-Inspire-Pack.git",
	"https://github.com/ltdrdata/was-node-suite-comfyui.git",
	"https://github.com/kijai/ComfyUI-segment-anything-2.git",
	"https://github.com/cubiq/ComfyUI_IPAdapter_plus.git",
	"https://github.com/pythongosssss/ComfyUI-WD14-Tagger.git",
	"https://github.com/Kosinkadink/ComfyUI-VideoHelperSuite.git",
	"https://github.com/Fannovel16/ComfyUI-Frame-Interpolation.git",
	"https://github.com/kijai/ComfyUI-WanVideoWrapper.git",
}

// ComfyUI builds the supervision spec for the ComfyUI service.
func ComfyUI(cfg *config.Config) supervise.Spec {
	settings := cfg.ComfyUI
	installPath := filepath.Join(settings.InstallParent, "ComfyUI")
	python := venvPython(installPath)
	pip := venvPip(installPath)

	return supervise.Spec{
		Name:  "comfyui",
		Title: "ComfyUI",
		URL:   settings.URL,

		CheckInstalled: func() error {
			return checkArtifacts(installPath,
				filepath.Join(installPath, "venv"),
				filepath.Join(installPath, "main.py"),
			)
		},

		Command: func() ([]string, string, error) {
			if settings.ExtraModelPaths != "" {
				if err := copyModelPaths(settings.ExtraModelPaths, installPath); err != nil {
					return nil, "", err
				}
			}
			argv := []string{
				python, "main.py",
				"--user-directory", settings.UserDir,
				"--output-directory", settings.OutputDir,
				"--input-directory", settings.InputDir,
				"--" + settings.VRAMMode,
			}
			return argv, installPath, nil
		},

		InstallSteps: func() ([]installer.Step, error) {
			if err := os.MkdirAll(settings.InstallParent, 0o755); err != nil {
				return nil, fmt.Errorf("create install parent: %w", err)
			}
			steps := []installer.Step{
				installer.Cmd("Cloning ComfyUI repository", installer.Fatal, settings.InstallParent,
					"git", "clone", "--depth", "1", comfyUIRepo),
				installer.Cmd("Creating Python virtual environment", installer.Fatal, installPath,
					cfg.Python, "-m", "venv", "venv"),
				installer.Cmd("Upgrading pip", installer.Warn, installPath,
					python, "-m", "pip", "install", "--upgrade", "pip"),
				{
					Desc: "Installing PyTorch",
					Commands: [][]string{{
						pip, "install", "torch", "torchvision", "torchaudio",
						"--index-url", "https://download.pytorch.org/whl/cu124",
					}},
					Dir:     installPath,
					Timeout: 45 * time.Minute,
					Policy:  installer.Fatal,
				},
				installer.Cmd("Installing build helpers", installer.Warn, installPath,
					pip, "install", "ninja", "packaging", "wheel"),
				installer.Cmd("Installing SageAttention", installer.Warn, installPath,
					pip, "install", "--no-build-isolation", "sageattention"),
				{
					Desc:     "Installing ComfyUI requirements",
					Commands: [][]string{{pip, "install", "-r", "requirements.txt"}},
					Dir:      installPath,
					Timeout:  30 * time.Minute,
					Policy:   installer.Fatal,
				},
				installer.Cmd("Installing audio support", installer.Warn, installPath,
					pip, "install", "soundfile"),
			}

			nodeDir := filepath.Join(installPath, "custom_nodes")
			steps = append(steps, nodeSteps(nodeDir, comfyUICoreNodes)...)
			if !settings.QuickInstall {
				steps = append(steps, nodeSteps(nodeDir, comfyUIExtraNodes)...)
			}
			return steps, nil
		},
	}
}

// nodeSteps produces one Warn-policy clone step per custom node repository.
// A failed node clone never aborts the primary installation.
func nodeSteps(nodeDir string, repos []string) []installer.Step {
	steps := make([]installer.Step, 0, len(repos))
	for _, repo := range repos {
		name := filepath.Base(repo)
		if ext := filepath.Ext(name); ext == ".git" {
			name = name[:len(name)-len(ext)]
		}
		step := installer.Cmd("Cloning "+name, installer.Warn, nodeDir,
			"git", "clone", "--depth", "1", repo)
		step.Timeout = 5 * time.Minute
		steps = append(steps, step)
	}
	return steps
}

func checkArtifacts(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("missing %s", path)
		}
	}
	return nil
}

// copyModelPaths places the user's model-paths manifest into the checkout
// where ComfyUI looks for it. A missing source file is not an error.
func copyModelPaths(src, installPath string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	dest := filepath.Join(installPath, "extra_model_paths.yaml")
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy model paths: %w", err)
	}
	return nil
}
