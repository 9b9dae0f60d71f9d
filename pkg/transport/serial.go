package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

// serialPoll bounds each blocking read so context deadlines are noticed.
const serialPoll = 100 * time.Millisecond

// SerialConn is an RS-232 / USB-CDC session.
type SerialConn struct {
	port      *serial.Port
	closeOnce sync.Once
	closed    atomic.Bool
}

// makeSerConf builds an 8N1 port configuration.
func makeSerConf(name string, baud int) *serial.Config {
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: serialPoll,
	}
}

// OpenSerial opens the named port at baud.
func OpenSerial(name string, baud int) (*SerialConn, error) {
	p, err := serial.OpenPort(makeSerConf(name, baud))
	if err != nil {
		return nil, err
	}
	return &SerialConn{port: p}, nil
}

func (s *SerialConn) Write(ctx context.Context, p []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return ctxError(err)
	}
	_, err := s.port.Write(p)
	return err
}

// Read polls the port until data arrives or the context ends. A read that
// times out inside the driver reports zero bytes with io.EOF or nil.
func (s *SerialConn) Read(ctx context.Context, p []byte) (int, error) {
	for {
		if s.closed.Load() {
			return 0, ErrClosed
		}
		n, err := s.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if err := ctx.Err(); err != nil {
			return 0, ctxError(err)
		}
	}
}

func (s *SerialConn) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.port.Close()
	})
	return err
}

func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
