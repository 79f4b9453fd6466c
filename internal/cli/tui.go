package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/config"
	"github.com/baaaaaaaka/tunneler/internal/tui"
)

const defaultRefreshInterval = 2 * time.Second

var runTui = tui.Run

func newTuiCmd(root *rootOptions) *cobra.Command {
	var refreshInterval time.Duration

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch and toggle tunnels in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Neither ssh nor the logger may write over the screen.
			if !root.debug {
				root.log = zerolog.Nop()
			}
			co := root.controllerOptions(cmd)
			co.extraArgs = []string{"-o", "BatchMode=yes"}
			co.stdin, co.stdout, co.stderr = nil, nil, nil

			eng, err := root.engineWith(cmd, co)
			if eng == nil || err != nil {
				return err
			}

			return runTui(cmd.Context(), tui.Options{
				Engine: eng,
				Reload: func(context.Context) (config.Config, error) {
					loaded, err := root.loadConfig()
					if err != nil {
						return config.Config{}, err
					}
					return loaded.Config, nil
				},
				RefreshInterval: refreshInterval,
				Version:         buildVersion(),
			})
		},
	}

	cmd.Flags().DurationVar(&refreshInterval, "refresh-interval", defaultRefreshInterval, "Auto-refresh interval (0 to disable)")
	return cmd
}
