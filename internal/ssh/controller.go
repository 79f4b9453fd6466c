package ssh

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/baaaaaaaka/tunneler/internal/proc"
	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

const (
	DefaultBinary    = "ssh"
	DefaultStopGrace = 2 * time.Second
)

var terminateProcess = proc.Terminate

// Controller launches forwards with the ssh client and stops them by PID.
// The zero value uses "ssh" from PATH and no debug output.
type Controller struct {
	Binary     string
	DebugLevel int
	// ExtraArgs are inserted before the -L argument.
	ExtraArgs []string
	StopGrace time.Duration

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Log zerolog.Logger
}

var _ tunnel.Controller = (*Controller)(nil)

func (c *Controller) binary() string {
	if c.Binary == "" {
		return DefaultBinary
	}
	return c.Binary
}

// Start runs ssh in its forking mode and reports whether it exited 0, which
// ssh only does once the forward is set up and the client has backgrounded.
func (c *Controller) Start(ctx context.Context, p tunnel.Params) bool {
	args, err := BuildArgs(Forward{
		User:       p.User,
		Server:     p.Server,
		LocalPort:  p.LocalPort,
		Host:       p.Host,
		RemotePort: p.RemotePort,
	}, c.DebugLevel, c.ExtraArgs)
	if err != nil {
		c.Log.Warn().Err(err).Str("params", p.String()).Msg("invalid forward")
		return false
	}

	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	// The backgrounded client inherits our pipes; don't wait on them. Run then
	// reports ErrWaitDelay for a clean exit.
	cmd.WaitDelay = time.Second

	c.Log.Debug().Str("binary", c.binary()).Strs("args", args).Msg("starting ssh")
	if err := cmd.Run(); err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		c.Log.Debug().Err(err).Str("params", p.String()).Msg("ssh failed")
		return false
	}
	return true
}

// Stop terminates the process behind h. A process that is already gone
// counts as a failure.
func (c *Controller) Stop(ctx context.Context, h tunnel.Handle) bool {
	if h == nil || h.PID() <= 0 {
		return false
	}
	grace := c.StopGrace
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	if err := terminateProcess(ctx, h.PID(), grace); err != nil {
		c.Log.Debug().Err(err).Int("pid", h.PID()).Msg("stop failed")
		return false
	}
	return true
}
