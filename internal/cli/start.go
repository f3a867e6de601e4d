package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thenullengine/ailab/internal/supervise"
)

func newStartCmd(flags *rootFlags) *cobra.Command {
	var noBrowser bool
	cmd := &cobra.Command{
		Use:   "start <service>",
		Short: "Start a service and stream its output until it exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []supervise.Option{
				// Ctrl+C is the stop request here; never prompt on the
				// way down.
				supervise.WithConfirmer(approveAll()),
			}
			if noBrowser {
				opts = append(opts, supervise.WithBrowserOpener(nil))
			}
			sess, err := flags.newSession(cmd, opts...)
			if err != nil {
				return err
			}
			ctrl, err := sess.controller(args[0])
			if err != nil {
				return err
			}

			stop := flags.streamEvents(cmd, sess.mux)
			defer stop()

			done, err := ctrl.Start(cmd.Context())
			if err != nil {
				return err
			}

			select {
			case err := <-done:
				return err
			case <-cmd.Context().Done():
				if err := ctrl.Stop(context.Background()); err != nil && !supervise.IsPrecondition(err) {
					fmt.Fprintf(cmd.ErrOrStderr(), "stop %s: %v\n", args[0], err)
				}
				<-done
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the service UI in a browser")
	return cmd
}

func approveAll() supervise.Confirmer {
	return supervise.ConfirmFunc(func(service, question string) bool { return true })
}
