package ssh

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Forward is one local port forward: connections to LocalPort are carried
// through Server and delivered to Host:RemotePort.
type Forward struct {
	User        string
	Server      string
	BindAddress string
	LocalPort   int
	Host        string
	RemotePort  int
}

func (f Forward) destination() string {
	if f.User == "" {
		return f.Server
	}
	return f.User + "@" + f.Server
}

// Spec renders the -L argument, bracketing IPv6 literals.
func (f Forward) Spec() string {
	parts := make([]string, 0, 4)
	if f.BindAddress != "" {
		parts = append(parts, bracket(f.BindAddress))
	}
	parts = append(parts, strconv.Itoa(f.LocalPort), bracket(f.Host), strconv.Itoa(f.RemotePort))
	return strings.Join(parts, ":")
}

func bracket(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// BuildArgs returns the ssh arguments for a backgrounded forward:
//
//	-g -f -N [-v ...] [extra ...] -L<local>:<host>:<remote> <user>@<server>
func BuildArgs(f Forward, debugLevel int, extra []string) ([]string, error) {
	if strings.TrimSpace(f.Server) == "" {
		return nil, errors.New("server is required")
	}
	if strings.TrimSpace(f.Host) == "" {
		return nil, errors.New("host is required")
	}
	if f.LocalPort <= 0 || f.LocalPort > 65535 {
		return nil, fmt.Errorf("invalid local port %d", f.LocalPort)
	}
	if f.RemotePort <= 0 || f.RemotePort > 65535 {
		return nil, fmt.Errorf("invalid remote port %d", f.RemotePort)
	}
	if debugLevel < 0 {
		debugLevel = 0
	}

	args := []string{"-g", "-f", "-N"}
	for i := 0; i < debugLevel; i++ {
		args = append(args, "-v")
	}
	args = append(args, extra...)
	args = append(args, "-L"+f.Spec(), f.destination())
	return args, nil
}
