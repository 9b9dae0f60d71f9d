package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"time"
)

// TCPConn is a raw SCPI socket connection.
type TCPConn struct {
	conn net.Conn
}

// DialTCP connects to addr ("host:port").
func DialTCP(ctx context.Context, addr string) (*TCPConn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPConn{conn: c}, nil
}

func (t *TCPConn) Write(ctx context.Context, p []byte) error {
	t.conn.SetWriteDeadline(deadline(ctx))
	_, err := t.conn.Write(p)
	return netError(err)
}

func (t *TCPConn) Read(ctx context.Context, p []byte) (int, error) {
	t.conn.SetReadDeadline(deadline(ctx))
	n, err := t.conn.Read(p)
	return n, netError(err)
}

func (t *TCPConn) Close() error {
	return t.conn.Close()
}

func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

func netError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	}
	return err
}
