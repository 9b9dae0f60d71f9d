package instrument

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

// scriptConn answers each command through reply. A nil reply result means
// the instrument stays silent.
type scriptConn struct {
	reply func(cmd string) []byte

	mu     sync.Mutex
	out    bytes.Buffer
	writes []string
	ready  chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

func newScriptConn(reply func(string) []byte) *scriptConn {
	return &scriptConn{
		reply:  reply,
		ready:  make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *scriptConn) Write(ctx context.Context, p []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	cmd := strings.TrimSuffix(string(p), "\n")
	c.mu.Lock()
	c.writes = append(c.writes, cmd)
	if resp := c.reply(cmd); resp != nil {
		c.out.Write(resp)
		select {
		case c.ready <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *scriptConn) Read(ctx context.Context, p []byte) (int, error) {
	for {
		c.mu.Lock()
		if c.out.Len() > 0 {
			n, _ := c.out.Read(p)
			c.mu.Unlock()
			return n, nil
		}
		c.mu.Unlock()
		select {
		case <-c.ready:
		case <-c.closed:
			return 0, transport.ErrClosed
		case <-ctx.Done():
			return 0, transport.ErrTimeout
		}
	}
}

func (c *scriptConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func scopeReplies(cmd string) []byte {
	switch {
	case cmd == "*IDN?":
		return []byte("RIGOL TECHNOLOGIES,DS1054Z,DS1ZA000000001,00.04.04.SP4\n")
	case cmd == ":WAV:DATA?":
		return []byte("#15hello\n")
	case cmd == "*OPC?":
		return []byte("1\n")
	case strings.HasPrefix(cmd, "ECHO? "):
		return []byte(strings.TrimPrefix(cmd, "ECHO? ") + "\n")
	}
	return nil
}

func TestHandleQuery(t *testing.T) {
	conn := newScriptConn(scopeReplies)
	h := NewHandle("SIM::DS1054Z::INSTR", conn, transport.Config{}, nil)
	defer h.Close()

	got, err := h.Query(context.Background(), "*IDN?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if !strings.HasPrefix(got, "RIGOL TECHNOLOGIES,DS1054Z") {
		t.Fatalf("Query = %q", got)
	}

	if err := h.Write(context.Background(), ":RUN"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if conn.writes[1] != ":RUN" {
		t.Fatalf("writes = %v", conn.writes)
	}
}

func TestHandleBlockThenQuery(t *testing.T) {
	conn := newScriptConn(scopeReplies)
	h := NewHandle("SIM::DS1054Z::INSTR", conn, transport.Config{}, nil)
	defer h.Close()

	data, err := h.QueryBlock(context.Background(), ":WAV:DATA?")
	if err != nil {
		t.Fatalf("QueryBlock failed: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("QueryBlock = %q", data)
	}

	// The newline after the block must not be returned as an empty answer.
	got, err := h.Query(context.Background(), "*OPC?")
	if err != nil || got != "1" {
		t.Fatalf("Query after block = %q, %v", got, err)
	}
}

func TestHandleTimeoutClosesSession(t *testing.T) {
	conn := newScriptConn(scopeReplies)
	h := NewHandle("SIM::DS1054Z::INSTR", conn, transport.Config{Timeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, err := h.Query(context.Background(), ":SILENT?")
	if err == nil {
		t.Fatalf("silent instrument answered")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("timeout not honoured")
	}

	var connErr *transport.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error %v is not a ConnectionError", err)
	}
	if !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("error %v does not wrap ErrTimeout", err)
	}
	if !h.Closed() {
		t.Fatalf("session still open after timeout")
	}

	_, err = h.Query(context.Background(), "*IDN?")
	if !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("query on dead session = %v, want ErrClosed", err)
	}
}

func TestHandleCancelClosesSession(t *testing.T) {
	conn := newScriptConn(scopeReplies)
	h := NewHandle("SIM::DS1054Z::INSTR", conn, transport.Config{Timeout: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.QueryBlock(ctx, ":SILENT?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled capture error = %v", err)
	}
	if !h.Closed() {
		t.Fatalf("session still open after cancel")
	}
}

func TestHandleSerializesExchanges(t *testing.T) {
	conn := newScriptConn(scopeReplies)
	h := NewHandle("SIM::DS1054Z::INSTR", conn, transport.Config{}, nil)
	defer h.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("reply-%d", i)
			got, err := h.Query(context.Background(), "ECHO? "+want)
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- fmt.Errorf("got %q, want %q", got, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestHandleCloseIdempotent(t *testing.T) {
	h := NewHandle("SIM::DS1054Z::INSTR", newScriptConn(scopeReplies), transport.Config{}, nil)
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := h.Write(context.Background(), "*RST"); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("Write after Close = %v", err)
	}
}
