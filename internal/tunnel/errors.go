package tunnel

import "errors"

// ErrConfigNotFound matches any *ConfigNotFoundError.
var ErrConfigNotFound = errors.New("tunnel config not found")

// ErrNoMatch is returned by IdentifyTunnel when no configured tunnel has the
// given server and remote port.
var ErrNoMatch = errors.New("no configured tunnel matches")

var errNotActive = errors.New("tunnel not active")

// ConfigNotFoundError names a tunnel or group that is not configured.
type ConfigNotFoundError struct {
	Name string
}

func (e *ConfigNotFoundError) Error() string {
	return "tunnel config not found: " + e.Name
}

func (e *ConfigNotFoundError) Is(target error) bool {
	return target == ErrConfigNotFound
}
