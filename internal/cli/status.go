package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show install and runtime state for all services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := flags.newSession(cmd)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVICE\tTITLE\tSTATE\tINSTALLED\tPID\tURL")
			for _, name := range sess.registry.Names() {
				ctrl, err := sess.controller(name)
				if err != nil {
					return err
				}
				st := ctrl.Status()
				installed := "no"
				if ctrl.Installed() {
					installed = "yes"
				}
				pid := "-"
				if st.Tracked {
					pid = fmt.Sprintf("%d", st.PID)
				}
				url := ctrl.URL()
				if url == "" {
					url = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					st.Service, st.Title, st.State, installed, pid, url)
			}
			return w.Flush()
		},
	}
	return cmd
}
