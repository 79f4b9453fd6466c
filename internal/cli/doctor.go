package cli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/spf13/cobra"

	"github.com/baaaaaaaka/tunneler/internal/config"
)

var (
	lookPath = exec.LookPath

	platformFamily = func(ctx context.Context) string {
		info, err := host.InfoWithContext(ctx)
		if err != nil {
			return ""
		}
		return info.PlatformFamily
	}
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the ssh client and tunnel configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var issues []string

			binary := root.settings.SSHBinary
			if binary == "" {
				binary = "ssh"
			}
			if _, err := lookPath(binary); err != nil {
				issues = append(issues, fmt.Sprintf("missing `%s` (OpenSSH client)", binary))
			}

			out := cmd.OutOrStdout()
			loaded, err := root.loadConfig()
			var layerErr *config.LayerError
			switch {
			case errors.Is(err, config.ErrNoConfig):
				issues = append(issues, "no tunnel configuration found (run `tunneler init`)")
			case errors.As(err, &layerErr):
				for _, p := range layerErr.Problems {
					issues = append(issues, layerErr.Path+": "+p)
				}
			case err != nil:
				issues = append(issues, "config error: "+err.Error())
			default:
				for _, p := range loaded.Paths {
					_, _ = fmt.Fprintf(out, "Config: %s\n", p)
				}
				_, _ = fmt.Fprintf(out, "Tunnels: %d, groups: %d\n", len(loaded.Config.Tunnels), len(loaded.Config.Groups))
			}

			if len(issues) == 0 {
				_, _ = fmt.Fprintln(out, "OK: environment looks good.")
				return nil
			}

			_, _ = fmt.Fprintln(out, "Issues found:")
			for _, it := range issues {
				_, _ = fmt.Fprintf(out, " - %s\n", it)
			}
			_, _ = fmt.Fprintln(out, "\nInstall hints:")
			for _, line := range installHints(runtime.GOOS, platformFamily(cmd.Context())) {
				_, _ = fmt.Fprintf(out, " - %s\n", line)
			}

			// Informational only.
			return nil
		},
	}
}

func installHints(goos, family string) []string {
	switch goos {
	case "darwin":
		return []string{"macOS ships with ssh; if it is missing run `xcode-select --install`"}
	case "windows":
		return []string{
			"Windows 10/11: install OpenSSH Client from Optional Features",
			"or via winget: `winget install Microsoft.OpenSSH.Beta`",
		}
	case "linux":
		switch family {
		case "debian":
			return []string{"Debian/Ubuntu: `sudo apt-get install -y openssh-client`"}
		case "rhel", "fedora":
			return []string{"RHEL/Fedora: `sudo dnf install -y openssh-clients`"}
		case "alpine":
			return []string{"Alpine: `apk add openssh-client`"}
		}
		return []string{"Linux: install the OpenSSH client package (`openssh-client` or `openssh-clients`)"}
	default:
		return []string{"Install an OpenSSH client (`ssh`) with your OS package manager"}
	}
}
