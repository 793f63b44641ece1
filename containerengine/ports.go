package containerengine

import (
	"context"
	"fmt"
	"net"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
)

// allocatePort returns fixed if non-zero, otherwise listens on an
// ephemeral port, closes the listener, and returns the port the OS
// assigned it.
func allocatePort(fixed int) (int, error) {
	if fixed != 0 {
		return fixed, nil
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocating ephemeral port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// probeBothLive waits for both addrs to accept a TCP connection,
// concurrently, returning as soon as either fails permanently or ctx is
// done.
func probeBothLive(ctx context.Context, addrs ...string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultLivenessTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, addr := range addrs {
		addr := addr
		g.Go(func() error {
			return probeLive(gctx, addr)
		})
	}
	return g.Wait()
}

func probeLive(ctx context.Context, addr string) error {
	op := func() (struct{}, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return struct{}{}, err
		}
		conn.Close()
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return fmt.Errorf("probing %s: %w", addr, err)
	}
	return nil
}
