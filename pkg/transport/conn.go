package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Conn is a raw byte channel to one instrument. Implementations honour the
// context deadline on every call and must be safe to Close concurrently
// with a blocked Read or Write.
type Conn interface {
	Write(ctx context.Context, p []byte) error
	Read(ctx context.Context, p []byte) (int, error)
	Close() error
}

// Config holds per-transport parameters supplied by the caller.
type Config struct {
	Timeout    time.Duration // response timeout when the context has none
	ChunkSize  int           // maximum bytes requested per read / points per waveform window
	Terminator string        // line terminator appended to commands and expected on responses
	Baud       int           // serial line rate
	SocketPort int           // raw SCPI port for TCPIP INSTR locators
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:    5 * time.Second,
		ChunkSize:  250000,
		Terminator: "\n",
		Baud:       9600,
		SocketPort: 5025,
	}
}

var (
	// ErrTimeout reports an exchange that exceeded its deadline. It is
	// always wrapped in a ConnectionError.
	ErrTimeout = errors.New("timeout")

	// ErrClosed reports use of a session that was closed, either explicitly
	// or because an exchange was cancelled.
	ErrClosed = errors.New("session closed")
)

// ConnectionError reports an unreachable or failed transport. Callers may
// retry or skip the locator.
type ConnectionError struct {
	Locator string
	Op      string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Locator, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a timeout from any transport.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
