package tunnel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/baaaaaaaka/tunneler/internal/config"
)

// DefaultWorkers bounds how many group members are started at once.
const DefaultWorkers = 20

// Engine reconciles configured tunnels against the forwards an Inspector
// reports, and starts or stops them through a Controller.
//
// Every call works on one snapshot of the configuration; SetConfig swaps the
// snapshot for subsequent calls without affecting calls in flight.
type Engine struct {
	cfg        atomic.Pointer[config.Config]
	inspector  Inspector
	controller Controller
	workers    int
	log        zerolog.Logger
}

type Option func(*Engine)

// WithWorkers sets the group start pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(cfg config.Config, inspector Inspector, controller Controller, opts ...Option) *Engine {
	e := &Engine{
		inspector:  inspector,
		controller: controller,
		workers:    DefaultWorkers,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.SetConfig(cfg)
	return e
}

// SetConfig replaces the configuration for subsequent calls. The engine keeps
// its own copy of the maps.
func (e *Engine) SetConfig(cfg config.Config) {
	c := config.Merge(cfg)
	e.cfg.Store(&c)
}

func (e *Engine) Config() config.Config {
	return *e.cfg.Load()
}

func (e *Engine) snapshot() *config.Config {
	return e.cfg.Load()
}

func guard(c *config.Config, name string) error {
	if c.Has(name) {
		return nil
	}
	return &ConfigNotFoundError{Name: name}
}

// IdentifyTunnel returns the sorted names of every configured tunnel using
// server and remotePort. Several names may share one key.
func (e *Engine) IdentifyTunnel(server string, remotePort int) ([]string, error) {
	return identify(e.snapshot(), server, remotePort)
}

func identify(c *config.Config, server string, remotePort int) ([]string, error) {
	var names []string
	for _, name := range c.TunnelNames() {
		t := c.Tunnels[name]
		if t.Server == server && t.RemotePort == remotePort {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoMatch
	}
	return names, nil
}

func (e *Engine) list(ctx context.Context) ([]Observed, error) {
	observed, err := e.inspector.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active tunnels: %w", err)
	}
	return observed, nil
}

// ActiveTunnel returns the first running forward that matches name. When
// several tunnels share a server and remote port, one process makes all of
// them active.
func (e *Engine) ActiveTunnel(ctx context.Context, name string) (Observed, error) {
	return e.activeTunnel(ctx, e.snapshot(), name)
}

func (e *Engine) activeTunnel(ctx context.Context, c *config.Config, name string) (Observed, error) {
	observed, err := e.list(ctx)
	if err != nil {
		return Observed{}, err
	}
	for _, o := range observed {
		names, err := identify(c, o.Server, o.RemotePort)
		if err != nil {
			continue
		}
		if slices.Contains(names, name) {
			return o, nil
		}
	}
	return Observed{}, errNotActive
}

// ActiveTunnels inspects once and returns one entry per matched name plus one
// UnknownName entry for every forward that matches nothing.
func (e *Engine) ActiveTunnels(ctx context.Context) ([]Active, error) {
	return e.activeTunnels(ctx, e.snapshot())
}

func (e *Engine) activeTunnels(ctx context.Context, c *config.Config) ([]Active, error) {
	observed, err := e.list(ctx)
	if err != nil {
		return nil, err
	}
	var out []Active
	for _, o := range observed {
		names, err := identify(c, o.Server, o.RemotePort)
		if err != nil {
			out = append(out, Active{
				Name:       UnknownName,
				Observed:   o,
				Diagnostic: "found: " + o.String(),
			})
			continue
		}
		for _, name := range names {
			out = append(out, Active{Name: name, Tunnel: c.Tunnels[name], Observed: o})
		}
	}
	return out, nil
}

func (e *Engine) ConfiguredTunnels(ctx context.Context, f Filter) ([]string, error) {
	return e.configuredTunnels(ctx, e.snapshot(), f)
}

func (e *Engine) configuredTunnels(ctx context.Context, c *config.Config, f Filter) ([]string, error) {
	names := c.TunnelNames()
	if f == FilterAll {
		return names, nil
	}

	observed, err := e.list(ctx)
	if err != nil {
		return nil, err
	}
	active := map[string]bool{}
	for _, o := range observed {
		matched, err := identify(c, o.Server, o.RemotePort)
		if err != nil {
			continue
		}
		for _, name := range matched {
			active[name] = true
		}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if active[name] == (f == FilterActive) {
			out = append(out, name)
		}
	}
	return out, nil
}

// ConfiguredGroups lists groups. With a filter, a group is listed when every
// member tunnel passes the same filter; a group without members never is.
func (e *Engine) ConfiguredGroups(ctx context.Context, f Filter) ([]string, error) {
	c := e.snapshot()
	groups := c.GroupNames()
	if f == FilterAll {
		return groups, nil
	}

	tunnels, err := e.configuredTunnels(ctx, c, f)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(groups))
	for _, name := range groups {
		members := c.Groups[name].Members
		all := len(members) > 0
		for _, m := range members {
			if !slices.Contains(tunnels, m.Tunnel) {
				all = false
				break
			}
		}
		if all {
			out = append(out, name)
		}
	}
	return out, nil
}

// IsTunnelActive reports whether a running forward matches name. Groups are
// accepted but never active themselves.
func (e *Engine) IsTunnelActive(ctx context.Context, name string) (bool, error) {
	c := e.snapshot()
	if err := guard(c, name); err != nil {
		return false, err
	}
	_, err := e.activeTunnel(ctx, c, name)
	if errors.Is(err, errNotActive) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Start starts a tunnel, or every member of a group, unless already running.
func (e *Engine) Start(ctx context.Context, name string) ([]StartResult, error) {
	c := e.snapshot()
	if err := guard(c, name); err != nil {
		return nil, err
	}
	if g, ok := c.Groups[name]; ok {
		return e.startGroup(ctx, c, g), nil
	}
	r, err := e.startTunnel(ctx, c, name, 0)
	if err != nil {
		return nil, err
	}
	return []StartResult{r}, nil
}

func (e *Engine) startTunnel(ctx context.Context, c *config.Config, name string, override int) (StartResult, error) {
	t, ok := c.Tunnels[name]
	if !ok {
		return StartResult{}, &ConfigNotFoundError{Name: name}
	}

	_, err := e.activeTunnel(ctx, c, name)
	if err == nil {
		return StartResult{Name: name, Status: StatusAlreadyRunning}, nil
	}
	if !errors.Is(err, errNotActive) {
		return StartResult{}, err
	}

	p := Params{
		User:       c.UserFor(t),
		Server:     t.Server,
		Host:       config.HostFor(t),
		LocalPort:  t.LocalPort,
		RemotePort: t.RemotePort,
	}
	if override != 0 {
		p.LocalPort = override
	}

	if !e.controller.Start(ctx, p) {
		e.log.Warn().Str("tunnel", name).Str("params", p.String()).Msg("start failed")
		return StartResult{Name: name, Status: p.String()}, nil
	}
	e.log.Debug().Str("tunnel", name).Int("local_port", p.LocalPort).Msg("started")
	return StartResult{Name: name, LocalPort: p.LocalPort}, nil
}

// Stop stops a tunnel, or every member of a group in configured order.
func (e *Engine) Stop(ctx context.Context, name string) ([]StopResult, error) {
	c := e.snapshot()
	if err := guard(c, name); err != nil {
		return nil, err
	}

	g, ok := c.Groups[name]
	if !ok {
		r, err := e.stopTunnel(ctx, c, name)
		if err != nil {
			return nil, err
		}
		return []StopResult{r}, nil
	}

	results := make([]StopResult, 0, len(g.Members))
	for _, m := range g.Members {
		r, err := e.stopTunnel(ctx, c, m.Tunnel)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

func (e *Engine) stopTunnel(ctx context.Context, c *config.Config, name string) (StopResult, error) {
	o, err := e.activeTunnel(ctx, c, name)
	if errors.Is(err, errNotActive) {
		return StopResult{Name: name}, nil
	}
	if err != nil {
		return StopResult{}, err
	}
	ok := e.controller.Stop(ctx, o.Handle)
	e.log.Debug().Str("tunnel", name).Int("pid", o.PID()).Bool("ok", ok).Msg("stop")
	return StopResult{Name: name, OK: ok}, nil
}

// StopAll stops every running forward that matches a configured tunnel.
// Unknown forwards are left alone. A process shared by several names is
// stopped once and its outcome reported for each name.
func (e *Engine) StopAll(ctx context.Context) ([]StopResult, error) {
	active, err := e.activeTunnels(ctx, e.snapshot())
	if err != nil {
		return nil, err
	}

	done := map[int]bool{}
	var results []StopResult
	for _, a := range active {
		if a.Name == UnknownName {
			continue
		}
		pid := a.Observed.PID()
		ok, seen := done[pid]
		if !seen {
			ok = e.controller.Stop(ctx, a.Observed.Handle)
			done[pid] = ok
			e.log.Debug().Str("tunnel", a.Name).Int("pid", pid).Bool("ok", ok).Msg("stop")
		}
		results = append(results, StopResult{Name: a.Name, OK: ok})
	}
	return results, nil
}
