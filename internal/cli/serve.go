package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thenullengine/ailab/internal/api"
	apihttp "github.com/thenullengine/ailab/internal/api/http"
	"github.com/thenullengine/ailab/internal/supervise"
)

var newAPIServer = apihttp.NewServer

func newServeCmd(flags *rootFlags) *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Supervise services headless with the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Remote callers cannot answer a prompt; stops requested over
			// the API proceed without confirmation.
			sess, err := flags.newSession(cmd, supervise.WithConfirmer(approveAll()))
			if err != nil {
				return err
			}

			// Admitted operations run on the serve context, not on the
			// request that triggered them.
			server, err := newAPIServer(apihttp.Config{
				Addr:       apiAddr,
				Controller: api.NewRegistryController(cmd.Context(), sess.registry),
			})
			if err != nil {
				return err
			}

			stop := flags.streamEvents(cmd, sess.mux)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Control API listening on %s\n", server.Addr())
			return server.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api-addr", "", "Listen address for the control API")
	return cmd
}
