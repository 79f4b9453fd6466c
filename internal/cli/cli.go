package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/config"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

var (
	version = "v0.1.0"
	commit  = ""
	date    = ""
)

type rootOptions struct {
	configPath    string
	verbose       bool
	debug         bool
	sshDebugLevel int
	workers       int

	settings config.Settings
	log      zerolog.Logger
}

func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "tunneler",
		Short:         "Start, stop and inspect SSH port-forward tunnels",
		SilenceErrors: false,
		SilenceUsage:  true,
		Version:       buildVersion(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Use only this config file (default: user config dir, then ./tunnels.yaml)")
	pf.BoolVar(&opts.verbose, "verbose", false, "Show detailed listings")
	pf.BoolVar(&opts.debug, "debug", false, "Log debug information to stderr")
	pf.IntVar(&opts.sshDebugLevel, "ssh-debug-level", 0, "Pass -v to ssh this many times")
	pf.IntVar(&opts.workers, "workers", tunnel.DefaultWorkers, "Tunnels started in parallel for a group")

	cmd.AddCommand(
		newCheckCmd(opts),
		newStartCmd(opts),
		newStopCmd(opts),
		newRestartCmd(opts),
		newShowCmd(opts),
		newInitCmd(opts),
		newAddCmd(opts),
		newRmCmd(opts),
		newGroupCmd(opts),
		newDoctorCmd(opts),
		newTuiCmd(opts),
	)

	return cmd
}

// resolve applies TUNNELER_* settings to every flag the user did not set.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	o.settings = s

	flags := cmd.Flags()
	if !flags.Changed("config") && s.ConfigPath != "" {
		o.configPath = s.ConfigPath
	}
	if !flags.Changed("ssh-debug-level") {
		o.sshDebugLevel = s.SSHDebugLevel
	}
	if !flags.Changed("workers") {
		o.workers = s.Workers
	}
	if !flags.Changed("debug") {
		o.debug = o.debug || s.Debug
	}

	o.log = newLogger(cmd.ErrOrStderr(), o.debug)
	return nil
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
