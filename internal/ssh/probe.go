package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// CheckLocalPort dials host:port until it accepts a TCP connection or timeout
// elapses.
func CheckLocalPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		d       net.Dialer
		lastErr error
	)
	for {
		attempt, cancelAttempt := context.WithTimeout(ctx, 200*time.Millisecond)
		c, err := d.DialContext(attempt, "tcp", addr)
		cancelAttempt()
		if err == nil {
			_ = c.Close()
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for %s: %w", addr, lastErr)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
