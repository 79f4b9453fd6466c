package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/config"
	"github.com/baaaaaaaka/tunneler/internal/ssh"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

type controllerOptions struct {
	binary     string
	debugLevel int
	stopGrace  time.Duration
	extraArgs  []string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	log        zerolog.Logger
}

var (
	loadSettings = config.LoadSettings

	newInspector = func(log zerolog.Logger) tunnel.Inspector {
		return ssh.Inspector{Log: log}
	}

	newController = func(o controllerOptions) tunnel.Controller {
		return &ssh.Controller{
			Binary:     o.binary,
			DebugLevel: o.debugLevel,
			ExtraArgs:  o.extraArgs,
			StopGrace:  o.stopGrace,
			Stdin:      o.stdin,
			Stdout:     o.stdout,
			Stderr:     o.stderr,
			Log:        o.log,
		}
	}
)

func (o *rootOptions) loadConfig() (config.Loaded, error) {
	return config.Load(o.configPath, o.settings.Base())
}

func (o *rootOptions) controllerOptions(cmd *cobra.Command) controllerOptions {
	return controllerOptions{
		binary:     o.settings.SSHBinary,
		debugLevel: o.sshDebugLevel,
		stopGrace:  o.settings.StopGrace,
		stdin:      os.Stdin,
		stdout:     cmd.OutOrStdout(),
		stderr:     cmd.ErrOrStderr(),
		log:        o.log,
	}
}

// engine loads the configuration and builds an Engine around it. When no
// configuration file exists it prints a hint and returns a nil Engine and a
// nil error; callers then return nil so the command exits 0.
func (o *rootOptions) engine(cmd *cobra.Command) (*tunnel.Engine, error) {
	return o.engineWith(cmd, o.controllerOptions(cmd))
}

func (o *rootOptions) engineWith(cmd *cobra.Command, co controllerOptions) (*tunnel.Engine, error) {
	loaded, err := o.loadConfig()
	if errors.Is(err, config.ErrNoConfig) {
		printNoConfigHint(cmd.OutOrStdout(), o.configPath)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.log.Debug().Strs("paths", loaded.Paths).Int("tunnels", len(loaded.Config.Tunnels)).Msg("config loaded")

	return tunnel.New(
		loaded.Config,
		newInspector(o.log),
		newController(co),
		tunnel.WithWorkers(o.workers),
		tunnel.WithLogger(o.log),
	), nil
}

func printNoConfigHint(w io.Writer, explicit string) {
	if explicit != "" {
		_, _ = fmt.Fprintf(w, "Could not find %s!\n", explicit)
		return
	}
	global, _ := config.GlobalPath()
	_, _ = fmt.Fprintf(w, "Could not find %s in this folder or %s!\n", config.LocalFileName, global)
	_, _ = fmt.Fprintln(w, "Run `tunneler init` to create one.")
}
