package cli

import (
	"fmt"
	"os"
	"sync"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thenullengine/ailab/internal/supervise"
	"github.com/thenullengine/ailab/internal/tui"
)

func newTuiCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive control interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("tui requires an interactive terminal")
			}

			// The confirmation modal belongs to the UI, which does not
			// exist yet when the controllers are built. Bind it late.
			confirm := &laterConfirmer{}
			sess, err := flags.newSession(cmd, supervise.WithConfirmer(confirm))
			if err != nil {
				return err
			}

			ui := tui.New(sess.registry, sess.mux.Output(),
				tui.WithBrowserOpener(browser.OpenURL))
			confirm.set(ui)

			return ui.Run(cmd.Context())
		},
	}
	return cmd
}

type laterConfirmer struct {
	mu     sync.Mutex
	target supervise.Confirmer
}

func (l *laterConfirmer) set(target supervise.Confirmer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = target
}

func (l *laterConfirmer) Confirm(service, question string) bool {
	l.mu.Lock()
	target := l.target
	l.mu.Unlock()
	if target == nil {
		return true
	}
	return target.Confirm(service, question)
}
