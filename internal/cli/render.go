package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/thenullengine/ailab/internal/cliutil"
	"github.com/thenullengine/ailab/internal/logmux"
	"github.com/thenullengine/ailab/internal/supervise"
)

// streamEvents renders the merged event stream to the command's output until
// the returned stop function is called. Stop drains whatever is already
// buffered so trailing pipeline lines are not lost on exit.
func (c *rootFlags) streamEvents(cmd *cobra.Command, mux *logmux.Mux) func() {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	enc := json.NewEncoder(out)

	print := func(evt supervise.Event) {
		if *c.jsonLogs {
			cliutil.EncodeLogEvent(enc, errOut, evt)
			return
		}
		if line := cliutil.FormatEvent(evt); line != "" {
			_, _ = out.Write([]byte(line + "\n"))
		}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case evt, ok := <-mux.Output():
				if !ok {
					return
				}
				print(evt)
			case <-done:
				for {
					select {
					case evt, ok := <-mux.Output():
						if !ok {
							return
						}
						print(evt)
					default:
						return
					}
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
