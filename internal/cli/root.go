package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thenullengine/ailab/internal/apps"
	"github.com/thenullengine/ailab/internal/config"
	"github.com/thenullengine/ailab/internal/logmux"
	"github.com/thenullengine/ailab/internal/probe"
	"github.com/thenullengine/ailab/internal/supervise"
)

const muxBuffer = 256

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *rootFlags) {
	var configFile string
	var assumeYes bool
	var jsonLogs bool

	root := &cobra.Command{
		Use:   "ailab",
		Short: "Install, launch and supervise local AI applications",
	}

	root.PersistentFlags().
		StringVarP(&configFile, "file", "f", "ailab.yaml", "Path to the lab configuration")
	root.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")
	root.PersistentFlags().BoolVar(&jsonLogs, "json", false, "Emit events as JSON lines")

	flags := &rootFlags{configFile: &configFile, assumeYes: &assumeYes, jsonLogs: &jsonLogs}
	root.AddCommand(newInstallCmd(flags))
	root.AddCommand(newUpdateCmd(flags))
	root.AddCommand(newStartCmd(flags))
	root.AddCommand(newStopCmd(flags))
	root.AddCommand(newRestartCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newTuiCmd(flags))
	root.AddCommand(newConfigCmd(flags))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, flags
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configFile *string
	assumeYes  *bool
	jsonLogs   *bool
}

func (c *rootFlags) loadConfig() (*config.Config, error) {
	path := *c.configFile
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir, derr := os.Getwd()
		if derr != nil {
			return nil, derr
		}
		return config.Default(dir), nil
	}
	return config.Load(path)
}

// session carries everything a command needs to drive services: the loaded
// configuration, one controller per managed app and the merged event stream.
type session struct {
	cfg      *config.Config
	registry *supervise.Registry
	mux      *logmux.Mux
	sources  []chan supervise.Event
}

func (c *rootFlags) newSession(cmd *cobra.Command, extra ...supervise.Option) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	opts := []supervise.Option{
		supervise.WithBrowserOpener(browser.OpenURL),
		supervise.WithReadinessProbe(probe.WaitHTTP),
		supervise.WithConfirmer(c.confirmer(cmd)),
	}
	opts = append(opts, extra...)

	mux := logmux.New(muxBuffer)
	registry := supervise.NewRegistry()
	sess := &session{cfg: cfg, registry: registry, mux: mux}
	for _, spec := range apps.Specs(cfg) {
		events := make(chan supervise.Event, 64)
		mux.Add(events)
		registry.Add(supervise.NewController(spec, events, opts...))
		sess.sources = append(sess.sources, events)
	}
	return sess, nil
}

// confirmer builds the yes/no gate used before stopping a service. With
// --yes, or when stdin is not a terminal, the gate approves silently.
func (c *rootFlags) confirmer(cmd *cobra.Command) supervise.Confirmer {
	return supervise.ConfirmFunc(func(service, question string) bool {
		if *c.assumeYes {
			return true
		}
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return true
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

func (s *session) controller(name string) (*supervise.Controller, error) {
	return s.registry.Get(name)
}
