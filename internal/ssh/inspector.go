package ssh

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/baaaaaaaka/tunneler/internal/proc"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

var listProcesses = proc.List

// pid is the Handle for a process found by Inspector.
type pid int

func (p pid) PID() int { return int(p) }

// Inspector finds running "ssh -N" clients and parses their forwards.
type Inspector struct {
	Log zerolog.Logger
}

var _ tunnel.Inspector = Inspector{}

func (i Inspector) ListActive(ctx context.Context) ([]tunnel.Observed, error) {
	procs, err := listProcesses(ctx)
	if err != nil {
		return nil, err
	}

	var out []tunnel.Observed
	for _, p := range procs {
		if !isSSH(p.Name) || !NoCommand(p.Args) {
			continue
		}
		f, err := ParseArgs(p.Args)
		if err != nil {
			i.Log.Debug().Err(err).Int("pid", p.PID).Msg("skipping ssh process")
			continue
		}
		out = append(out, tunnel.Observed{
			Handle:     pid(p.PID),
			LocalPort:  f.LocalPort,
			Host:       f.Host,
			RemotePort: f.RemotePort,
			User:       f.User,
			Server:     f.Server,
			Started:    p.Created,
		})
	}
	return out, nil
}

func isSSH(name string) bool {
	name = strings.ToLower(filepath.Base(name))
	return strings.TrimSuffix(name, ".exe") == "ssh"
}
