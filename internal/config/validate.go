package config

import (
	"errors"
	"fmt"
	"strings"
)

// Problems checks the configuration for consistency and returns one message
// per problem, sorted by name so output is stable.
func (c Config) Problems() []string {
	var out []string

	for _, name := range c.TunnelNames() {
		t := c.Tunnels[name]
		if strings.TrimSpace(t.Server) == "" {
			out = append(out, fmt.Sprintf("[%s] server is required", name))
		}
		if !validPort(t.RemotePort) {
			out = append(out, fmt.Sprintf("[%s] invalid remote_port %d", name, t.RemotePort))
		}
		if !validPort(t.LocalPort) {
			out = append(out, fmt.Sprintf("[%s] invalid local_port %d", name, t.LocalPort))
		}
	}

	for _, name := range c.GroupNames() {
		g := c.Groups[name]
		if len(g.Members) == 0 {
			out = append(out, fmt.Sprintf("[%s] group has no members", name))
		}
		for _, m := range g.Members {
			if !c.HasTunnel(m.Tunnel) {
				out = append(out, fmt.Sprintf("[%s] tunnel %s undefined", name, m.Tunnel))
			}
			if m.LocalPort != 0 && !validPort(m.LocalPort) {
				out = append(out, fmt.Sprintf("[%s] invalid port override %d for %s", name, m.LocalPort, m.Tunnel))
			}
		}
		if c.HasTunnel(name) {
			out = append(out, fmt.Sprintf("Found one group and a tunnel called the same: %s", name))
		}
	}

	return out
}

// Validate joins Problems into a single error, or returns nil.
func (c Config) Validate() error {
	problems := c.Problems()
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, 0, len(problems))
	for _, p := range problems {
		errs = append(errs, errors.New(p))
	}
	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
