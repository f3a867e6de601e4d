package apps

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thenullengine/ailab/internal/config"
	"github.com/thenullengine/ailab/internal/installer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return config.Default(t.TempDir())
}

func TestSpecsCoverAllServicesInOrder(t *testing.T) {
	specs := Specs(testConfig(t))
	want := []string{"comfyui", "aitoolkit", "onetrainer"}
	if len(specs) != len(want) {
		t.Fatalf("specs = %d entries, want %d", len(specs), len(want))
	}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Fatalf("spec %d is %s, want %s", i, spec.Name, want[i])
		}
		if spec.Command == nil || spec.CheckInstalled == nil || spec.InstallSteps == nil {
			t.Fatalf("%s is missing a required closure", spec.Name)
		}
	}
}

func TestComfyUICommandCarriesManifestSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.ComfyUI.VRAMMode = "lowvram"
	spec := ComfyUI(cfg)

	argv, dir, err := spec.Command()
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if want := filepath.Join(cfg.ComfyUI.InstallParent, "ComfyUI"); dir != want {
		t.Fatalf("dir = %q, want %q", dir, want)
	}

	joined := strings.Join(argv, " ")
	for _, fragment := range []string{
		"main.py",
		"--user-directory " + cfg.ComfyUI.UserDir,
		"--output-directory " + cfg.ComfyUI.OutputDir,
		"--input-directory " + cfg.ComfyUI.InputDir,
		"--lowvram",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("argv %q missing %q", joined, fragment)
		}
	}
	if !strings.Contains(argv[0], "venv") {
		t.Fatalf("argv[0] = %q, want the virtualenv interpreter", argv[0])
	}
}

func TestComfyUIInstallMarkerRequiresArtifacts(t *testing.T) {
	cfg := testConfig(t)
	spec := ComfyUI(cfg)

	if err := spec.CheckInstalled(); err == nil {
		t.Fatal("empty directory reported as installed")
	}

	installPath := filepath.Join(cfg.ComfyUI.InstallParent, "ComfyUI")
	if err := os.MkdirAll(filepath.Join(installPath, "venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(installPath, "main.py"), []byte("print()\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := spec.CheckInstalled(); err != nil {
		t.Fatalf("artifacts present but check failed: %v", err)
	}
}

func TestComfyUIQuickInstallSkipsExtraNodes(t *testing.T) {
	cfg := testConfig(t)
	full, err := ComfyUI(cfg).InstallSteps()
	if err != nil {
		t.Fatalf("full install steps: %v", err)
	}

	cfg.ComfyUI.QuickInstall = true
	quick, err := ComfyUI(cfg).InstallSteps()
	if err != nil {
		t.Fatalf("quick install steps: %v", err)
	}

	if len(quick) >= len(full) {
		t.Fatalf("quick install has %d steps, full %d; want fewer", len(quick), len(full))
	}
	if diff := len(full) - len(quick); diff != len(comfyUIExtraNodes) {
		t.Fatalf("quick install skipped %d steps, want %d", diff, len(comfyUIExtraNodes))
	}
}

func TestComfyUIEssentialStepsAreFatal(t *testing.T) {
	steps, err := ComfyUI(testConfig(t)).InstallSteps()
	if err != nil {
		t.Fatalf("install steps: %v", err)
	}

	policies := map[string]installer.Policy{}
	for _, step := range steps {
		policies[step.Desc] = step.Policy
	}
	for _, essential := range []string{
		"Cloning ComfyUI repository",
		"Creating Python virtual environment",
		"Installing PyTorch",
		"Installing ComfyUI requirements",
	} {
		if policies[essential] != installer.Fatal {
			t.Fatalf("%q policy = %s, want fatal", essential, policies[essential])
		}
	}
	for desc, policy := range policies {
		if strings.HasPrefix(desc, "Cloning ") && desc != "Cloning ComfyUI repository" {
			if policy != installer.Warn {
				t.Fatalf("node step %q policy = %s, want warn", desc, policy)
			}
		}
	}
}

func TestAIToolkitInstallPrefersUvWithPipFallback(t *testing.T) {
	steps, err := AIToolkit(testConfig(t)).InstallSteps()
	if err != nil {
		t.Fatalf("install steps: %v", err)
	}

	var torch *installer.Step
	for i := range steps {
		if steps[i].Desc == "Installing PyTorch" {
			torch = &steps[i]
		}
	}
	if torch == nil {
		t.Fatal("no PyTorch step in the pipeline")
	}
	if len(torch.Commands) != 2 {
		t.Fatalf("PyTorch step has %d strategies, want 2", len(torch.Commands))
	}
	if !strings.Contains(strings.Join(torch.Commands[0], " "), "uv pip install") {
		t.Fatalf("first strategy %v, want uv", torch.Commands[0])
	}
	if strings.Contains(strings.Join(torch.Commands[1], " "), "uv") {
		t.Fatalf("fallback strategy %v still uses uv", torch.Commands[1])
	}
}

func TestAIToolkitUpdateRequiresCheckout(t *testing.T) {
	cfg := testConfig(t)
	spec := AIToolkit(cfg)

	if _, err := spec.UpdateSteps(); err == nil {
		t.Fatal("update steps built without a checkout on disk")
	}

	if err := os.MkdirAll(filepath.Join(cfg.AIToolkit.InstallParent, "ai-toolkit"), 0o755); err != nil {
		t.Fatal(err)
	}
	steps, err := spec.UpdateSteps()
	if err != nil {
		t.Fatalf("update steps: %v", err)
	}
	var pulled bool
	for _, step := range steps {
		if step.Desc == "Pulling latest changes" && step.Policy == installer.Fatal {
			pulled = true
		}
	}
	if !pulled {
		t.Fatal("update pipeline is missing a fatal git pull")
	}
}

func TestAIToolkitServesUIFromNode(t *testing.T) {
	cfg := testConfig(t)
	spec := AIToolkit(cfg)

	argv, dir, err := spec.Command()
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if argv[0] != "npm" {
		t.Fatalf("argv = %v, want an npm launch", argv)
	}
	if filepath.Base(dir) != "ui" {
		t.Fatalf("dir = %q, want the ui directory", dir)
	}
}

func TestOneTrainerUpdateFallsBackToInstallScript(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.OneTrainer.InstallParent, "OneTrainer"), 0o755); err != nil {
		t.Fatal(err)
	}
	steps, err := OneTrainer(cfg).UpdateSteps()
	if err != nil {
		t.Fatalf("update steps: %v", err)
	}

	var updater *installer.Step
	for i := range steps {
		if steps[i].Desc == "Running OneTrainer updater" {
			updater = &steps[i]
		}
	}
	if updater == nil {
		t.Fatal("no updater step in the pipeline")
	}
	if len(updater.Commands) != 2 {
		t.Fatalf("updater has %d strategies, want update then install", len(updater.Commands))
	}
}

func TestOneTrainerLaunchesStartScript(t *testing.T) {
	spec := OneTrainer(testConfig(t))
	argv, dir, err := spec.Command()
	if err != nil {
		t.Fatalf("command: %v", err)
	}
	if len(argv) < 2 || !strings.Contains(argv[len(argv)-1], "start-ui") {
		t.Fatalf("argv = %v, want the start-ui script", argv)
	}
	if filepath.Base(dir) != "OneTrainer" {
		t.Fatalf("dir = %q, want the OneTrainer checkout", dir)
	}
}
