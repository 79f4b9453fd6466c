package config

import (
	"sort"
	"strings"
)

// New returns an empty configuration with initialised maps.
func New() Config {
	return Config{
		Tunnels: map[string]Tunnel{},
		Groups:  map[string]Group{},
	}
}

func (c Config) HasTunnel(name string) bool {
	_, ok := c.Tunnels[name]
	return ok
}

func (c Config) HasGroup(name string) bool {
	_, ok := c.Groups[name]
	return ok
}

// Has reports whether name is configured as either a tunnel or a group.
func (c Config) Has(name string) bool {
	return c.HasTunnel(name) || c.HasGroup(name)
}

func (c Config) TunnelNames() []string {
	names := make([]string, 0, len(c.Tunnels))
	for name := range c.Tunnels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c Config) GroupNames() []string {
	names := make([]string, 0, len(c.Groups))
	for name := range c.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserFor returns the tunnel's user or the common default.
func (c Config) UserFor(t Tunnel) string {
	if strings.TrimSpace(t.User) != "" {
		return t.User
	}
	if strings.TrimSpace(c.Common.DefaultUser) != "" {
		return c.Common.DefaultUser
	}
	return FallbackUser
}

// HostFor returns the tunnel's jump-through host or DefaultHost.
func HostFor(t Tunnel) string {
	if strings.TrimSpace(t.Host) != "" {
		return t.Host
	}
	return DefaultHost
}

func (c *Config) UpsertTunnel(t Tunnel) {
	if c.Tunnels == nil {
		c.Tunnels = map[string]Tunnel{}
	}
	c.Tunnels[t.Name] = t
}

// RemoveTunnel deletes a tunnel and reports whether it existed. Group
// references are left for Validate to report.
func (c *Config) RemoveTunnel(name string) bool {
	if _, ok := c.Tunnels[name]; !ok {
		return false
	}
	delete(c.Tunnels, name)
	return true
}

func (c *Config) UpsertGroup(g Group) {
	if c.Groups == nil {
		c.Groups = map[string]Group{}
	}
	c.Groups[g.Name] = g
}

func (c *Config) RemoveGroup(name string) bool {
	if _, ok := c.Groups[name]; !ok {
		return false
	}
	delete(c.Groups, name)
	return true
}

// Merge layers configs in order; later entries override earlier ones per key.
func Merge(layers ...Config) Config {
	out := New()
	for _, layer := range layers {
		if layer.Common.DefaultUser != "" {
			out.Common.DefaultUser = layer.Common.DefaultUser
		}
		for name, t := range layer.Tunnels {
			out.Tunnels[name] = t
		}
		for name, g := range layer.Groups {
			out.Groups[name] = g
		}
	}
	if out.Common.DefaultUser == "" {
		out.Common.DefaultUser = FallbackUser
	}
	return out
}

// normalize fills Name fields from map keys and ensures maps are non-nil.
func (c *Config) normalize() {
	if c.Tunnels == nil {
		c.Tunnels = map[string]Tunnel{}
	}
	if c.Groups == nil {
		c.Groups = map[string]Group{}
	}
	for name, t := range c.Tunnels {
		t.Name = name
		c.Tunnels[name] = t
	}
	for name, g := range c.Groups {
		g.Name = name
		c.Groups[name] = g
	}
}
