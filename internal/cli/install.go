package cli

import (
	"github.com/spf13/cobra"
)

func newInstallCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <service>",
		Short: "Run the install pipeline for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCmd(flags, cmd, args[0], pipelineInstall)
		},
	}
	return cmd
}

func newUpdateCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <service>",
		Short: "Run the update pipeline for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipelineCmd(flags, cmd, args[0], pipelineUpdate)
		},
	}
	return cmd
}

type pipelineKind int

const (
	pipelineInstall pipelineKind = iota
	pipelineUpdate
)

func runPipelineCmd(flags *rootFlags, cmd *cobra.Command, service string, kind pipelineKind) error {
	sess, err := flags.newSession(cmd)
	if err != nil {
		return err
	}
	ctrl, err := sess.controller(service)
	if err != nil {
		return err
	}

	stop := flags.streamEvents(cmd, sess.mux)
	defer stop()

	var done <-chan error
	switch kind {
	case pipelineUpdate:
		done, err = ctrl.Update(cmd.Context())
	default:
		done, err = ctrl.Install(cmd.Context())
	}
	if err != nil {
		return err
	}
	return <-done
}
