package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/config"
)

// target selects the file an edit command writes and the layer beneath it.
// --config wins, then --local (./tunnels.yaml over the global file), then the
// global file.
func (o *rootOptions) target(local bool) (*config.Store, config.Config, error) {
	base := o.settings.Base()

	if o.configPath != "" {
		store, err := config.NewStore(o.configPath)
		return store, base, err
	}
	if !local {
		store, err := config.NewStore("")
		return store, base, err
	}

	path, err := config.LocalPath()
	if err != nil {
		return nil, config.Config{}, err
	}
	store, err := config.NewStore(path)
	if err != nil {
		return nil, config.Config{}, err
	}
	global, err := config.NewStore("")
	if err != nil {
		return nil, config.Config{}, err
	}
	if global.Path() == store.Path() {
		return store, base, nil
	}
	under, err := global.Load()
	if err != nil {
		return nil, config.Config{}, err
	}
	return store, config.Merge(base, under), nil
}

func newInitCmd(root *rootOptions) *cobra.Command {
	var (
		force bool
		local bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter tunnel configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := root.target(local)
			if err != nil {
				return err
			}
			if err := store.Init(force); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&local, "local", false, "Write ./tunnels.yaml instead of the user config file")
	return cmd
}

func newAddCmd(root *rootOptions) *cobra.Command {
	var (
		t     config.Tunnel
		local bool
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a tunnel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Name = strings.TrimSpace(args[0])
			if t.Name == "" {
				return fmt.Errorf("tunnel name is required")
			}
			store, base, err := root.target(local)
			if err != nil {
				return err
			}
			if err := store.UpdateOver(base, func(cfg *config.Config) error {
				if cfg.HasGroup(t.Name) {
					return fmt.Errorf("%s is already a group", t.Name)
				}
				cfg.UpsertTunnel(t)
				return nil
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved tunnel %s to %s\n", t.Name, store.Path())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&t.Server, "server", "", "SSH server to connect to")
	f.IntVar(&t.RemotePort, "remote-port", 0, "Port on the target host")
	f.IntVar(&t.LocalPort, "local-port", 0, "Local port to listen on")
	f.StringVar(&t.User, "user", "", "SSH user (default: common default_user)")
	f.StringVar(&t.Host, "host", "", "Target host as seen from the server (default: localhost)")
	f.StringVar(&t.Description, "description", "", "Free-form description")
	f.BoolVar(&local, "local", false, "Edit ./tunnels.yaml instead of the user config file")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("remote-port")
	_ = cmd.MarkFlagRequired("local-port")
	return cmd
}

func newRmCmd(root *rootOptions) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "rm NAME",
		Short: "Remove a tunnel or group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			store, base, err := root.target(local)
			if err != nil {
				return err
			}
			errMissing := errors.New("missing")
			err = store.UpdateOver(base, func(cfg *config.Config) error {
				if cfg.RemoveTunnel(name) || cfg.RemoveGroup(name) {
					return nil
				}
				return errMissing
			})
			if errors.Is(err, errMissing) {
				return fmt.Errorf("%s is not defined in %s", name, store.Path())
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", name, store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Edit ./tunnels.yaml instead of the user config file")
	return cmd
}

func newGroupCmd(root *rootOptions) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "group NAME [MEMBER[:PORT]...]",
		Short: "Define a group, or delete it when no members are given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("group name is required")
			}
			members := make([]config.Member, 0, len(args)-1)
			for _, raw := range args[1:] {
				m, err := config.ParseMember(raw)
				if err != nil {
					return err
				}
				members = append(members, m)
			}

			store, base, err := root.target(local)
			if err != nil {
				return err
			}
			if err := store.UpdateOver(base, func(cfg *config.Config) error {
				if len(members) == 0 {
					if !cfg.RemoveGroup(name) {
						return fmt.Errorf("group %s is not defined in %s", name, store.Path())
					}
					return nil
				}
				if cfg.HasTunnel(name) {
					return fmt.Errorf("%s is already a tunnel", name)
				}
				cfg.UpsertGroup(config.Group{Name: name, Members: members})
				return nil
			}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(members) == 0 {
				_, _ = fmt.Fprintf(out, "Removed group %s from %s\n", name, store.Path())
				return nil
			}
			_, _ = fmt.Fprintf(out, "Saved group %s to %s\n", name, store.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Edit ./tunnels.yaml instead of the user config file")
	return cmd
}
