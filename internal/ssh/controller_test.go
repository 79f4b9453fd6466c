package ssh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

type fakePID int

func (p fakePID) PID() int { return int(p) }

// writeFakeSSH puts an ssh script on PATH that records its argv and exits
// with code.
func writeFakeSSH(t *testing.T, code int) (argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skip shell script test on windows")
	}
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\nexit " + strconv.Itoa(code) + "\n"
	if err := os.WriteFile(filepath.Join(dir, "ssh"), []byte(script), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	t.Setenv("PATH", dir)
	return argsFile
}

func TestControllerStart(t *testing.T) {
	params := tunnel.Params{User: "user", Server: "server", Host: "localhost", LocalPort: 1212, RemotePort: 3434}

	t.Run("exit 0 is success", func(t *testing.T) {
		argsFile := writeFakeSSH(t, 0)
		c := &Controller{DebugLevel: 1}
		if !c.Start(context.Background(), params) {
			t.Fatalf("expected Start to succeed")
		}
		b, err := os.ReadFile(argsFile)
		if err != nil {
			t.Fatalf("read args: %v", err)
		}
		want := "-g\n-f\n-N\n-v\n-L1212:localhost:3434\nuser@server\n"
		if string(b) != want {
			t.Fatalf("args=%q want %q", b, want)
		}
	})

	t.Run("non-zero exit is failure", func(t *testing.T) {
		writeFakeSSH(t, 1)
		c := &Controller{}
		if c.Start(context.Background(), params) {
			t.Fatalf("expected Start to fail")
		}
	})

	t.Run("missing binary is failure", func(t *testing.T) {
		t.Setenv("PATH", "")
		c := &Controller{}
		if c.Start(context.Background(), params) {
			t.Fatalf("expected Start to fail without ssh")
		}
	})

	t.Run("invalid params never run ssh", func(t *testing.T) {
		argsFile := writeFakeSSH(t, 0)
		c := &Controller{}
		bad := params
		bad.LocalPort = 0
		if c.Start(context.Background(), bad) {
			t.Fatalf("expected Start to fail")
		}
		if _, err := os.Stat(argsFile); !os.IsNotExist(err) {
			t.Fatalf("ssh should not have run")
		}
	})

	t.Run("backgrounded child holding stdout does not block", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("skip shell script test on windows")
		}
		dir := t.TempDir()
		script := "#!/bin/sh\n(sleep 5 &)\nexit 0\n"
		if err := os.WriteFile(filepath.Join(dir, "ssh"), []byte(script), 0o700); err != nil {
			t.Fatalf("write script: %v", err)
		}
		t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

		var out strings.Builder
		c := &Controller{Stdout: &out, Stderr: &out}
		start := time.Now()
		if !c.Start(context.Background(), params) {
			t.Fatalf("expected Start to succeed")
		}
		if elapsed := time.Since(start); elapsed > 4*time.Second {
			t.Fatalf("Start blocked for %v", elapsed)
		}
	})
}

func TestControllerStop(t *testing.T) {
	prev := terminateProcess
	t.Cleanup(func() { terminateProcess = prev })

	var gotPID int
	var gotGrace time.Duration
	terminateProcess = func(ctx context.Context, pid int, grace time.Duration) error {
		gotPID, gotGrace = pid, grace
		if pid == 13 {
			return errors.New("gone")
		}
		return nil
	}

	c := &Controller{}
	if !c.Stop(context.Background(), fakePID(42)) {
		t.Fatalf("expected Stop to succeed")
	}
	if gotPID != 42 || gotGrace != DefaultStopGrace {
		t.Fatalf("terminate called with pid=%d grace=%v", gotPID, gotGrace)
	}

	c.StopGrace = time.Second
	if c.Stop(context.Background(), fakePID(13)) {
		t.Fatalf("expected Stop to fail")
	}
	if gotGrace != time.Second {
		t.Fatalf("grace=%v", gotGrace)
	}

	gotPID = 0
	if c.Stop(context.Background(), nil) || c.Stop(context.Background(), fakePID(0)) {
		t.Fatalf("expected Stop to reject empty handles")
	}
	if gotPID != 0 {
		t.Fatalf("terminate should not be called for empty handles")
	}
}
