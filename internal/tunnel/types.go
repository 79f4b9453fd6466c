package tunnel

import (
	"context"
	"fmt"
	"time"

	"github.com/baaaaaaaka/tunneler/internal/config"
)

// Handle identifies a live tunnel process. It is produced by an Inspector and
// only ever handed back to the Controller that understands it.
type Handle interface {
	PID() int
}

// Observed is a running ssh forward as seen in the process table. It carries
// no name; names are inferred by matching Server and RemotePort against the
// configuration.
type Observed struct {
	Handle     Handle
	LocalPort  int
	Host       string
	RemotePort int
	User       string
	Server     string
	Started    time.Time
}

func (o Observed) PID() int {
	if o.Handle == nil {
		return 0
	}
	return o.Handle.PID()
}

func (o Observed) String() string {
	return fmt.Sprintf("%s@%s - local:%d - host:%s - remote:%d (pid %d)",
		o.User, o.Server, o.LocalPort, o.Host, o.RemotePort, o.PID())
}

// Params is everything the Controller needs to launch one forward.
type Params struct {
	User       string
	Server     string
	Host       string
	LocalPort  int
	RemotePort int
}

func (p Params) String() string {
	return fmt.Sprintf("%s@%s - local:%d - host:%s - remote:%d",
		p.User, p.Server, p.LocalPort, p.Host, p.RemotePort)
}

// Inspector lists the tunnel processes currently running. Implementations
// must be safe for concurrent use and return a fresh slice per call.
type Inspector interface {
	ListActive(ctx context.Context) ([]Observed, error)
}

// Controller launches and terminates tunnel processes. Implementations must
// be safe for concurrent use.
type Controller interface {
	Start(ctx context.Context, p Params) bool
	Stop(ctx context.Context, h Handle) bool
}

const (
	// StatusAlreadyRunning is reported by Start for a tunnel that is active.
	StatusAlreadyRunning = "already running"
	// UnknownName labels running forwards that match no configured tunnel.
	UnknownName = "Unknown"
)

// StartResult is the outcome for one tunnel. LocalPort is set on a fresh
// start; otherwise Status explains why nothing was started.
type StartResult struct {
	Name      string
	LocalPort int
	Status    string
}

func (r StartResult) OK() bool { return r.Status == "" && r.LocalPort != 0 }

type StopResult struct {
	Name string
	OK   bool
}

// Active pairs a running forward with the configured tunnel it matched.
// For UnknownName entries Tunnel is zero and Diagnostic describes the process.
type Active struct {
	Name       string
	Tunnel     config.Tunnel
	Observed   Observed
	Diagnostic string
}

type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterInactive
)

func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterInactive:
		return "inactive"
	default:
		return "all"
	}
}
