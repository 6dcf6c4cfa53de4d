package config

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/rs/zerolog"

	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

// LinkOptions returns the link options described by l.
func (l Link) LinkOptions(logger zerolog.Logger) []slip_link.Option {
	return []slip_link.Option{
		slip_link.WithCapacity(l.Capacity),
		slip_link.WithLeadingEnd(l.LeadingEnd),
		slip_link.WithReadSize(l.ReadSize),
		slip_link.WithLogger(logger),
	}
}

// Open dials the TCP address or opens the device path named by l.
func (l Link) Open(ctx context.Context) (io.ReadWriteCloser, error) {
	switch l.Network {
	case NetworkTCP:
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", l.Address)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", l.Address, err)
		}
		return conn, nil
	case NetworkDevice:
		f, err := os.OpenFile(l.Address, os.O_RDWR, 0)
		if err != nil {
			return nil, fmt.Errorf("open device: %w", err)
		}
		return f, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, l.Network)
}

// Listener opens a TCP listener on l.Address.
func (l Link) Listener(ctx context.Context) (net.Listener, error) {
	if l.Network != NetworkTCP {
		return nil, fmt.Errorf("%w: cannot listen on %q", ErrUnknownNetwork, l.Network)
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", l.Address)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", l.Address, err)
	}

	return lis, nil
}
