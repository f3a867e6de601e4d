package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultManifest = `# ailab configuration
#
# Relative paths resolve against this file's directory. Unset fields fall
# back to sensible defaults during load.

python: python3

comfyui:
  installParent: .
  vramMode: normalvram
  quickInstall: false
  url: http://127.0.0.1:8188

aitoolkit:
  installParent: .
  url: http://localhost:8675

onetrainer:
  installParent: .
`

func newConfigCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold the lab configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *flags.configFile
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(defaultManifest), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(show)
	cmd.AddCommand(initCmd)
	return cmd
}
