package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/baaaaaaaka/tunneler/internal/tunnel"
)

func TestStartStopCommands(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	out, err := runCLI(t, "--config", path, "start", "db")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out != "[ OK ] db:15432\n" {
		t.Fatalf("start output=%q", out)
	}

	out, err = runCLI(t, "--config", path, "start", "db")
	if err != nil {
		t.Fatalf("start again: %v", err)
	}
	if out != "[ FAIL ] db : already running\n" {
		t.Fatalf("second start output=%q", out)
	}

	out, err = runCLI(t, "--config", path, "check", "db", "web")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "db: Tunnel is active") || !strings.Contains(out, "web: Tunnel is NOT active") {
		t.Fatalf("check output=%q", out)
	}

	out, err = runCLI(t, "--config", path, "stop", "db")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if out != "[ OK ] db\n" {
		t.Fatalf("stop output=%q", out)
	}

	out, err = runCLI(t, "--config", path, "stop", "db")
	if err != nil {
		t.Fatalf("stop inactive: %v", err)
	}
	if out != "[ FAIL ] db\n" {
		t.Fatalf("stop inactive output=%q", out)
	}
}

func TestStartGroupReportsFailureDiagnostic(t *testing.T) {
	host := &fakeHost{failOn: map[int]bool{18080: true}}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	out, err := runCLI(t, "--config", path, "start", "all")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(out, "[ OK ] db:15432\n") {
		t.Fatalf("missing db line: %q", out)
	}
	if !strings.Contains(out, "[ FAIL ] web : deploy@bastion - local:18080 - host:localhost - remote:8080\n") {
		t.Fatalf("missing web diagnostic: %q", out)
	}
	if got := host.startedPorts(); len(got) != 2 || got[0] != 15432 || got[1] != 18080 {
		t.Fatalf("started ports=%v", got)
	}
}

func TestUnknownNames(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	for _, args := range [][]string{
		{"start", "nope"},
		{"stop", "nope"},
		{"check", "nope"},
	} {
		out, err := runCLI(t, append([]string{"--config", path}, args...)...)
		if err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		if out != "Tunnel config not found: nope\n" {
			t.Fatalf("%v output=%q", args, out)
		}
	}
	if len(host.started) != 0 || len(host.stopped) != 0 {
		t.Fatalf("unexpected process activity: %+v", host)
	}
}

func TestStartAndStopWithoutArgsListTunnels(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	out, err := runCLI(t, "--config", path, "start")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out != "Inactive:\t db web\n" {
		t.Fatalf("start output=%q", out)
	}

	out, err = runCLI(t, "--config", path, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if out != "No active tunnels\n" {
		t.Fatalf("stop output=%q", out)
	}
}

func TestStopAllSkipsUnknown(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	host.add(tunnel.Observed{User: "deploy", Server: "bastion", Host: "db.internal", LocalPort: 15432, RemotePort: 5432})
	host.add(tunnel.Observed{User: "x", Server: "elsewhere", Host: "localhost", LocalPort: 1, RemotePort: 2})

	out, err := runCLI(t, "--config", path, "stop", "ALL")
	if err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if out != "[ OK ] db\n" {
		t.Fatalf("stop all output=%q", out)
	}
	if len(host.procs) != 1 || host.procs[0].Server != "elsewhere" {
		t.Fatalf("unknown forward must survive: %+v", host.procs)
	}
}

func TestRestartActiveTunnels(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)

	host.add(tunnel.Observed{User: "deploy", Server: "bastion", Host: "localhost", LocalPort: 18080, RemotePort: 8080})
	host.add(tunnel.Observed{User: "x", Server: "elsewhere", Host: "localhost", LocalPort: 1, RemotePort: 2})

	out, err := runCLI(t, "--config", path, "restart")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if out != "[ OK ] web\n[ OK ] web:18080\n" {
		t.Fatalf("restart output=%q", out)
	}
	if len(host.stopped) != 1 || len(host.started) != 1 {
		t.Fatalf("stopped=%v started=%v", host.stopped, host.started)
	}
}

func TestCheckProbesLocalPort(t *testing.T) {
	host := &fakeHost{}
	installFakes(t, host)
	path := writeConfig(t, testYAML)
	host.add(tunnel.Observed{User: "deploy", Server: "bastion", Host: "db.internal", LocalPort: 15432, RemotePort: 5432})

	prev := checkLocalPort
	t.Cleanup(func() { checkLocalPort = prev })
	var probed int
	checkLocalPort = func(_ context.Context, port int, _ time.Duration) error {
		probed = port
		return errors.New("connection refused")
	}

	out, err := runCLI(t, "--config", path, "check", "db")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if probed != 15432 {
		t.Fatalf("probed port=%d", probed)
	}
	if !strings.Contains(out, "Tunnel is active\n") || !strings.Contains(out, "Local port 15432 is not accepting connections") {
		t.Fatalf("check output=%q", out)
	}

	probed = 0
	if _, err := runCLI(t, "--config", path, "check", "--probe-timeout", "0", "db"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if probed != 0 {
		t.Fatalf("probe must be disabled")
	}
}

func TestMissingConfigPrintsHint(t *testing.T) {
	installFakes(t, &fakeHost{})
	path := t.TempDir() + "/absent.yaml"

	out, err := runCLI(t, "--config", path, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Could not find "+path) {
		t.Fatalf("output=%q", out)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	installFakes(t, &fakeHost{})
	path := writeConfig(t, "tunnels:\n  db:\n    server: s\n    remote_port: 1\n    local_port: 2\ngroups:\n  db:\n    - db\n")

	_, err := runCLI(t, "--config", path, "show")
	if err == nil || !strings.Contains(err.Error(), "Found one group and a tunnel called the same: db") {
		t.Fatalf("expected layer error, got %v", err)
	}
}
