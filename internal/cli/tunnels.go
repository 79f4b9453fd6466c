package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/ssh"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

var checkLocalPort = func(ctx context.Context, port int, timeout time.Duration) error {
	return ssh.CheckLocalPort(ctx, "127.0.0.1", port, timeout)
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	var probeTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "check NAME...",
		Short: "Check the state of a tunnel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := root.engine(cmd)
			if eng == nil || err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			for _, name := range args {
				prefix := ""
				if len(args) > 1 {
					prefix = name + ": "
				}

				active, err := eng.IsTunnelActive(ctx, name)
				if errors.Is(err, tunnel.ErrConfigNotFound) {
					_, _ = fmt.Fprintf(out, "Tunnel config not found: %s\n", name)
					continue
				}
				if err != nil {
					return err
				}
				if !active {
					_, _ = fmt.Fprintf(out, "%sTunnel is NOT active\n", prefix)
					continue
				}
				_, _ = fmt.Fprintf(out, "%sTunnel is active\n", prefix)

				if probeTimeout <= 0 {
					continue
				}
				o, err := eng.ActiveTunnel(ctx, name)
				if err != nil || o.LocalPort == 0 {
					continue
				}
				if err := checkLocalPort(ctx, o.LocalPort, probeTimeout); err != nil {
					_, _ = fmt.Fprintf(out, "%sLocal port %d is not accepting connections: %v\n", prefix, o.LocalPort, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", time.Second, "Also dial the local port of active tunnels (0 to disable)")
	return cmd
}

func newStartCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start [NAME...]",
		Short: "Start one or more tunnels or groups",
		Long:  "Start one or more tunnels or groups. Without arguments, list the inactive tunnels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := root.engine(cmd)
			if eng == nil || err != nil {
				return err
			}
			if len(args) == 0 {
				return printInactiveTunnels(cmd, eng)
			}
			p := newPrinter(cmd.OutOrStdout())
			for _, name := range args {
				if err := startCall(cmd, eng, p, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStopCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [NAME...|all]",
		Short: "Stop one or more or all tunnels",
		Long: "Stop tunnels or groups. \"all\" stops every running forward that matches a " +
			"configured tunnel; unknown forwards are left alone. Without arguments, list the active tunnels.",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := root.engine(cmd)
			if eng == nil || err != nil {
				return err
			}
			if len(args) == 0 {
				return printActiveTunnels(cmd, eng, false)
			}
			p := newPrinter(cmd.OutOrStdout())

			if len(args) == 1 && strings.EqualFold(args[0], "all") && !eng.Config().Has(args[0]) {
				results, err := eng.StopAll(cmd.Context())
				if err != nil {
					return err
				}
				printStopResults(p, results)
				return nil
			}

			for _, name := range args {
				if err := stopCall(cmd, eng, p, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRestartCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [NAME...]",
		Short: "Stop and start specific or all active tunnels",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := root.engine(cmd)
			if eng == nil || err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				active, err := eng.ActiveTunnels(cmd.Context())
				if err != nil {
					return err
				}
				seen := map[string]bool{}
				for _, a := range active {
					if a.Name == tunnel.UnknownName || seen[a.Name] {
						continue
					}
					seen[a.Name] = true
					names = append(names, a.Name)
				}
			}

			p := newPrinter(cmd.OutOrStdout())
			for _, name := range names {
				if err := stopCall(cmd, eng, p, name); err != nil {
					return err
				}
				if err := startCall(cmd, eng, p, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func startCall(cmd *cobra.Command, eng *tunnel.Engine, p *printer, name string) error {
	results, err := eng.Start(cmd.Context(), name)
	if errors.Is(err, tunnel.ErrConfigNotFound) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Tunnel config not found: %s\n", name)
		return nil
	}
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.OK() {
			p.OK("%s:%d", r.Name, r.LocalPort)
		} else {
			p.Fail("%s : %s", r.Name, r.Status)
		}
	}
	return nil
}

func stopCall(cmd *cobra.Command, eng *tunnel.Engine, p *printer, name string) error {
	results, err := eng.Stop(cmd.Context(), name)
	if errors.Is(err, tunnel.ErrConfigNotFound) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Tunnel config not found: %s\n", name)
		return nil
	}
	printStopResults(p, results)
	return err
}

func printStopResults(p *printer, results []tunnel.StopResult) {
	for _, r := range results {
		if r.OK {
			p.OK("%s", r.Name)
		} else {
			p.Fail("%s", r.Name)
		}
	}
}
