package proc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Info is a snapshot of one running process.
type Info struct {
	PID     int
	Name    string
	Args    []string
	Created time.Time
}

// ErrNotRunning is returned by Terminate when the process is already gone.
var ErrNotRunning = errors.New("process not running")

var pollInterval = 100 * time.Millisecond

// List enumerates running processes. Processes that vanish or cannot be read
// while listing (typically permission errors) are skipped.
func List(ctx context.Context) ([]Info, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]Info, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil {
			continue
		}
		info := Info{PID: int(p.Pid), Name: name, Args: args}
		if ms, err := p.CreateTimeWithContext(ctx); err == nil && ms > 0 {
			info.Created = time.UnixMilli(ms)
		}
		out = append(out, info)
	}
	return out, nil
}

// Terminate asks pid to exit, waits up to grace for it to go away and kills
// it otherwise.
func Terminate(ctx context.Context, pid int, grace time.Duration) error {
	if !IsAlive(pid) {
		return fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return fmt.Errorf("pid %d: %w", pid, ErrNotRunning)
		}
		return fmt.Errorf("open pid %d: %w", pid, err)
	}

	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if !IsAlive(pid) {
		return nil
	}

	if err := p.KillWithContext(ctx); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
