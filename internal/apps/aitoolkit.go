package apps

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/thenullengine/ailab/internal/config"
	"github.com/thenullengine/ailab/internal/installer"
	"github.com/thenullengine/ailab/internal/supervise"
)

const aiToolkitRepo = "https://github.com/ostris/ai-toolkit.git"

// AIToolkit builds the supervision spec for the AI Toolkit service. The
// toolkit serves its UI through a node server started from the checkout's ui
// directory; dependency installs prefer uv and fall back to plain pip.
func AIToolkit(cfg *config.Config) supervise.Spec {
	settings := cfg.AIToolkit
	installPath := filepath.Join(settings.InstallParent, "ai-toolkit")
	python := venvPython(installPath)
	uiDir := filepath.Join(installPath, "ui")

	// The node build needs a couple of extra seconds before the port binds.
	const settle = 3 * time.Second

	pipInstall := func(args ...string) [][]string {
		uv := append([]string{python, "-m", "uv", "pip", "install"}, args...)
		pip := append([]string{python, "-m", "pip", "install"}, args...)
		return [][]string{uv, pip}
	}

	return supervise.Spec{
		Name:        "aitoolkit",
		Title:       "AI Toolkit",
		URL:         settings.URL,
		SettleDelay: settle,

		CheckInstalled: func() error {
			return checkArtifacts(installPath, uiDir, filepath.Join(installPath, "venv"))
		},

		Command: func() ([]string, string, error) {
			return []string{"npm", "run", "build_and_start"}, uiDir, nil
		},

		InstallSteps: func() ([]installer.Step, error) {
			if err := os.MkdirAll(settings.InstallParent, 0o755); err != nil {
				return nil, fmt.Errorf("create install parent: %w", err)
			}
			steps := []installer.Step{
				installer.Cmd("Checking for git", installer.Fatal, settings.InstallParent,
					"git", "--version"),
				installer.Cmd("Checking for Node.js", installer.Warn, settings.InstallParent,
					"node", "--version"),
				installer.Cmd("Cloning AI Toolkit repository", installer.Fatal, settings.InstallParent,
					"git", "clone", aiToolkitRepo),
				installer.Cmd("Creating Python virtual environment", installer.Fatal, installPath,
					cfg.Python, "-m", "venv", "venv"),
				installer.Cmd("Installing uv", installer.Warn, installPath,
					python, "-m", "pip", "install", "uv"),
				{
					Desc: "Installing PyTorch",
					Commands: pipInstall(
						"torch", "torchvision", "torchaudio",
						"--index-url", "https://download.pytorch.org/whl/cu128",
					),
					Dir:     installPath,
					Timeout: 45 * time.Minute,
					Policy:  installer.Fatal,
				},
				{
					Desc:     "Installing requirements",
					Commands: pipInstall("-r", "requirements.txt"),
					Dir:      installPath,
					Timeout:  30 * time.Minute,
					Policy:   installer.Fatal,
				},
			}
			for _, pkg := range []string{"poetry-core", "wheel", "hf_xet"} {
				step := installer.Step{
					Desc:     "Installing " + pkg,
					Commands: pipInstall(pkg),
					Dir:      installPath,
					Policy:   installer.Warn,
				}
				steps = append(steps, step)
			}
			steps = append(steps, installer.Cmd("Installing UI dependencies", installer.Fatal, uiDir,
				"npm", "install"))
			return steps, nil
		},

		UpdateSteps: func() ([]installer.Step, error) {
			if err := checkArtifacts(installPath); err != nil {
				return nil, fmt.Errorf("ai-toolkit checkout missing, install first: %w", err)
			}
			return []installer.Step{
				installer.Cmd("Discarding local changes", installer.Warn, installPath,
					"git", "reset", "--hard"),
				installer.Cmd("Removing untracked files", installer.Warn, installPath,
					"git", "clean", "-fd"),
				installer.Cmd("Pulling latest changes", installer.Fatal, installPath,
					"git", "pull"),
				installer.Cmd("Removing stale diffusers", installer.Warn, installPath,
					python, "-m", "pip", "uninstall", "diffusers", "-y"),
				{
					Desc:     "Reinstalling requirements",
					Commands: pipInstall("-r", "requirements.txt"),
					Dir:      installPath,
					Timeout:  30 * time.Minute,
					Policy:   installer.Fatal,
				},
			}, nil
		},
	}
}
