//go:build linux

package ssh

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

func TestForwardIntegrationStartInspectStop(t *testing.T) {
	if os.Getenv("SSH_TEST_ENABLED") != "1" {
		t.Skip("SSH integration tests disabled")
	}
	host := os.Getenv("SSH_TEST_HOST")
	portStr := os.Getenv("SSH_TEST_PORT")
	user := os.Getenv("SSH_TEST_USER")
	key := os.Getenv("SSH_TEST_KEY")
	if host == "" || portStr == "" || user == "" || key == "" {
		t.Skip("missing SSH_TEST_* env vars")
	}
	if _, err := exec.LookPath("ssh"); err != nil {
		t.Skipf("ssh not available: %v", err)
	}
	sshPort, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("invalid SSH_TEST_PORT: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, localStr, _ := net.SplitHostPort(ln.Addr().String())
	_ = ln.Close()
	localPort, err := strconv.Atoi(localStr)
	if err != nil {
		t.Fatalf("parse local port: %v", err)
	}

	ctrl := &Controller{
		ExtraArgs: []string{
			"-i", key,
			"-p", portStr,
			"-o", "BatchMode=yes",
			"-o", "StrictHostKeyChecking=no",
			"-o", "UserKnownHostsFile=/dev/null",
			"-o", "ExitOnForwardFailure=yes",
		},
		StopGrace: time.Second,
	}
	// Forward back to the sshd itself so the remote end always exists.
	params := tunnel.Params{User: user, Server: host, Host: "127.0.0.1", LocalPort: localPort, RemotePort: sshPort}
	ctx := context.Background()
	if !ctrl.Start(ctx, params) {
		t.Fatalf("Start failed for %s", params)
	}

	var found *tunnel.Observed
	observed, err := Inspector{}.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	for i := range observed {
		if observed[i].LocalPort == localPort && observed[i].Server == host {
			found = &observed[i]
		}
	}
	if found == nil {
		t.Fatalf("forward on %d not found in %#v", localPort, observed)
	}
	t.Cleanup(func() { _ = ctrl.Stop(ctx, found.Handle) })

	if found.User != user || found.RemotePort != sshPort || found.Host != "127.0.0.1" {
		t.Fatalf("unexpected observed forward %#v", found)
	}
	if err := CheckLocalPort(ctx, "127.0.0.1", localPort, 3*time.Second); err != nil {
		t.Fatalf("CheckLocalPort: %v", err)
	}

	if !ctrl.Stop(ctx, found.Handle) {
		t.Fatalf("Stop failed")
	}
	if ctrl.Stop(ctx, found.Handle) {
		t.Fatalf("second Stop should fail")
	}
}
