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

const oneTrainerRepo = "https://github.com/Nerogar/OneTrainer.git"

// OneTrainer builds the supervision spec for the OneTrainer service. It is a
// desktop application launched through its own start script, so there is no
// URL and no browser side effect.
func OneTrainer(cfg *config.Config) supervise.Spec {
	settings := cfg.OneTrainer
	installPath := filepath.Join(settings.InstallParent, "OneTrainer")

	return supervise.Spec{
		Name:  "onetrainer",
		Title: "OneTrainer",
		URL:   settings.URL,

		CheckInstalled: func() error {
			return checkArtifacts(installPath, scriptPath(installPath, "start-ui"))
		},

		Command: func() ([]string, string, error) {
			return script(installPath, "start-ui"), installPath, nil
		},

		InstallSteps: func() ([]installer.Step, error) {
			if err := os.MkdirAll(settings.InstallParent, 0o755); err != nil {
				return nil, fmt.Errorf("create install parent: %w", err)
			}
			install := installer.Step{
				Desc:     "Running OneTrainer installer",
				Commands: [][]string{script(installPath, "install")},
				Dir:      installPath,
				Timeout:  60 * time.Minute,
				Policy:   installer.Fatal,
			}
			return []installer.Step{
				installer.Cmd("Cloning OneTrainer repository", installer.Fatal, settings.InstallParent,
					"git", "clone", "--depth", "1", oneTrainerRepo),
				install,
			}, nil
		},

		UpdateSteps: func() ([]installer.Step, error) {
			if err := checkArtifacts(installPath); err != nil {
				return nil, fmt.Errorf("OneTrainer checkout missing, install first: %w", err)
			}
			update := installer.Step{
				Desc:     "Running OneTrainer updater",
				Commands: [][]string{script(installPath, "update"), script(installPath, "install")},
				Dir:      installPath,
				Timeout:  60 * time.Minute,
				Policy:   installer.Warn,
			}
			return []installer.Step{
				installer.Cmd("Pulling latest changes", installer.Fatal, installPath,
					"git", "pull"),
				update,
			}, nil
		},
	}
}
