package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

func newShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "show [tunnels|groups|all]",
		Short:     "Show active/inactive tunnels and groups",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"tunnels", "groups", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			what := "all"
			if len(args) == 1 {
				what = args[0]
			}
			if what != "all" && what != "tunnels" && what != "groups" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No idea what %s is\n", what)
				return nil
			}

			eng, err := root.engine(cmd)
			if eng == nil || err != nil {
				return err
			}

			if what == "all" || what == "tunnels" {
				if err := printActiveTunnels(cmd, eng, root.verbose); err != nil {
					return err
				}
				if err := printInactiveTunnels(cmd, eng); err != nil {
					return err
				}
			}
			if what == "all" || what == "groups" {
				if err := printGroups(cmd, eng, tunnel.FilterActive); err != nil {
					return err
				}
				if err := printGroups(cmd, eng, tunnel.FilterInactive); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printActiveTunnels(cmd *cobra.Command, eng *tunnel.Engine, verbose bool) error {
	out := cmd.OutOrStdout()
	if verbose {
		active, err := eng.ActiveTunnels(cmd.Context())
		if err != nil {
			return err
		}
		if len(active) == 0 {
			_, _ = fmt.Fprintln(out, "No active tunnels")
			return nil
		}
		return writeActiveTable(out, active)
	}

	names, err := eng.ConfiguredTunnels(cmd.Context(), tunnel.FilterActive)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No active tunnels")
		return nil
	}
	_, _ = fmt.Fprintln(out, "Active:\t\t", strings.Join(names, " "))
	return nil
}

func printInactiveTunnels(cmd *cobra.Command, eng *tunnel.Engine) error {
	names, err := eng.ConfiguredTunnels(cmd.Context(), tunnel.FilterInactive)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		_, _ = fmt.Fprintln(out, "No inactive tunnels")
		return nil
	}
	_, _ = fmt.Fprintln(out, "Inactive:\t", strings.Join(names, " "))
	return nil
}

func printGroups(cmd *cobra.Command, eng *tunnel.Engine, f tunnel.Filter) error {
	names, err := eng.ConfiguredGroups(cmd.Context(), f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	label := "Active groups:\t"
	if f == tunnel.FilterInactive {
		label = "Inactive groups:\t"
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintf(out, "No %s groups\n", f)
		return nil
	}
	_, _ = fmt.Fprintln(out, label, strings.Join(names, " "))
	return nil
}

// writeActiveTable renders one row per matched name. Unknown forwards sort
// last and show the process's own parameters.
func writeActiveTable(w io.Writer, active []tunnel.Active) error {
	rows := append([]tunnel.Active(nil), active...)
	sort.SliceStable(rows, func(i, j int) bool {
		ui, uj := rows[i].Name == tunnel.UnknownName, rows[j].Name == tunnel.UnknownName
		if ui != uj {
			return uj
		}
		return rows[i].Name < rows[j].Name
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tLOCAL\tTARGET\tSERVER\tPID\tSTARTED")
	for _, a := range rows {
		o := a.Observed
		started := "-"
		if !o.Started.IsZero() {
			started = humanize.Time(o.Started)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s:%d\t%s@%s\t%s\t%s\n",
			a.Name,
			o.LocalPort,
			o.Host, o.RemotePort,
			o.User, o.Server,
			pidLabel(o.PID()),
			started,
		)
	}
	return tw.Flush()
}

func pidLabel(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return strconv.Itoa(pid)
}
