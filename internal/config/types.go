package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultHost is the jump-through target used when a tunnel omits host.
	DefaultHost = "localhost"
	// FallbackUser is used when no configuration layer sets a default user.
	FallbackUser = "nobody"
)

type Config struct {
	Common  Common            `yaml:"common"`
	Tunnels map[string]Tunnel `yaml:"tunnels"`
	Groups  map[string]Group  `yaml:"groups"`
}

type Common struct {
	DefaultUser string `yaml:"default_user,omitempty"`
}

type Tunnel struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description,omitempty"`
	User        string `yaml:"user,omitempty"`
	Host        string `yaml:"host,omitempty"`
	Server      string `yaml:"server"`
	RemotePort  int    `yaml:"remote_port"`
	LocalPort   int    `yaml:"local_port"`
}

// Group members are started together. Order is preserved for stop and for
// display; start runs members concurrently.
type Group struct {
	Name    string
	Members []Member
}

// Member references a tunnel by name. LocalPort overrides the tunnel's own
// local port when non-zero.
type Member struct {
	Tunnel    string
	LocalPort int
}

// ParseMember parses the "name" or "name:port" form.
func ParseMember(s string) (Member, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Member{}, fmt.Errorf("empty group member")
	}
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return Member{Tunnel: s}, nil
	}
	name, portStr := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	if name == "" {
		return Member{}, fmt.Errorf("group member %q has no tunnel name", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Member{}, fmt.Errorf("group member %q: invalid port %q", s, portStr)
	}
	return Member{Tunnel: name, LocalPort: port}, nil
}

func (m Member) String() string {
	if m.LocalPort == 0 {
		return m.Tunnel
	}
	return m.Tunnel + ":" + strconv.Itoa(m.LocalPort)
}

func (m *Member) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: group member must be a string: %w", node.Line, err)
	}
	parsed, err := ParseMember(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = parsed
	return nil
}

func (m Member) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	var members []Member
	if err := node.Decode(&members); err != nil {
		return err
	}
	g.Members = members
	return nil
}

func (g Group) MarshalYAML() (any, error) {
	if g.Members == nil {
		return []Member{}, nil
	}
	return g.Members, nil
}
