package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStopCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <service>",
		Short: "Stop a running service and its process tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.newSession(cmd)
			if err != nil {
				return err
			}
			ctrl, err := sess.controller(args[0])
			if err != nil {
				return err
			}

			stop := flags.streamEvents(cmd, sess.mux)
			defer stop()

			if err := ctrl.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stopped\n", args[0])
			return nil
		},
	}
	return cmd
}

func newRestartCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <service>",
		Short: "Restart a running service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.newSession(cmd)
			if err != nil {
				return err
			}
			ctrl, err := sess.controller(args[0])
			if err != nil {
				return err
			}

			stop := flags.streamEvents(cmd, sess.mux)
			defer stop()

			done, err := ctrl.Restart(cmd.Context())
			if err != nil {
				return err
			}
			// The channel resolves when the restarted process exits, so
			// like start this keeps streaming in the foreground.
			select {
			case err := <-done:
				return err
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	return cmd
}
