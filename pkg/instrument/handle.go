package instrument

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/transport"
)

// Observer receives per-exchange events, e.g. for metrics.
type Observer interface {
	ExchangeCompleted(op string, d time.Duration, err error)
}

// Handle is an open session with one instrument. Exchanges are serialized:
// a write-then-read completes before the next command is issued. A Handle
// is safe for concurrent use; distinct Handles do not interact.
//
// When the context of an exchange ends before the exchange does, the
// underlying connection is closed to unblock it and the Handle becomes
// unusable.
type Handle struct {
	locator string
	conn    transport.Conn
	cfg     transport.Config
	log     logrus.FieldLogger

	mu       sync.Mutex
	r        *bufio.Reader
	cr       *ctxReader
	afterBlk bool // a block was read; its terminator may still be buffered

	closeMu  sync.Mutex
	closed   bool
	observer Observer
}

// ctxReader adapts a Conn to io.Reader using the context of the exchange in
// progress.
type ctxReader struct {
	conn transport.Conn
	ctx  context.Context
	size int
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if r.size > 0 && len(p) > r.size {
		p = p[:r.size]
	}
	return r.conn.Read(r.ctx, p)
}

// NewHandle wraps an open connection. cfg zero values fall back to
// transport.DefaultConfig.
func NewHandle(locator string, conn transport.Conn, cfg transport.Config, log logrus.FieldLogger) *Handle {
	def := transport.DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Terminator == "" {
		cfg.Terminator = def.Terminator
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	cr := &ctxReader{conn: conn, ctx: context.Background(), size: cfg.ChunkSize}
	return &Handle{
		locator: locator,
		conn:    conn,
		cfg:     cfg,
		log:     log.WithField("locator", locator),
		r:       bufio.NewReaderSize(cr, 64*1024),
		cr:      cr,
	}
}

// Locator returns the address this handle was opened on.
func (h *Handle) Locator() string { return h.locator }

// Config returns the transport parameters in effect.
func (h *Handle) Config() transport.Config { return h.cfg }

// SetTimeout changes the timeout applied to exchanges whose context has no
// deadline. A context deadline always takes precedence.
func (h *Handle) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	h.mu.Lock()
	h.cfg.Timeout = d
	h.mu.Unlock()
}

// SetObserver installs an exchange observer.
func (h *Handle) SetObserver(o Observer) { h.observer = o }

// Logger returns the handle's logger, tagged with its locator.
func (h *Handle) Logger() logrus.FieldLogger { return h.log }

// Write sends one command. The terminator is appended.
func (h *Handle) Write(ctx context.Context, cmd string) error {
	return h.exchange(ctx, "write", func(ctx context.Context) error {
		return h.send(ctx, cmd)
	})
}

// Query sends cmd and returns the response line without its terminator.
func (h *Handle) Query(ctx context.Context, cmd string) (string, error) {
	var resp string
	err := h.exchange(ctx, "query", func(ctx context.Context) error {
		if err := h.send(ctx, cmd); err != nil {
			return err
		}
		line, err := h.readLine()
		resp = line
		return err
	})
	return resp, err
}

// QueryBlock sends cmd and reads an IEEE 488.2 arbitrary block response.
func (h *Handle) QueryBlock(ctx context.Context, cmd string) ([]byte, error) {
	var data []byte
	err := h.exchange(ctx, "block", func(ctx context.Context) error {
		if err := h.send(ctx, cmd); err != nil {
			return err
		}
		block, err := transport.ReadBlock(h.r)
		if err != nil {
			return err
		}
		h.afterBlk = true
		data = block
		return nil
	})
	return data, err
}

// exchange runs fn under the session lock with a deadline and closes the
// session when the context ends first.
func (h *Handle) exchange(ctx context.Context, op string, fn func(context.Context) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.Closed() {
		return &transport.ConnectionError{Locator: h.locator, Op: op, Err: transport.ErrClosed}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	stop := context.AfterFunc(ctx, func() {
		h.markClosed()
		h.conn.Close()
	})

	start := time.Now()
	h.cr.ctx = ctx
	err := fn(ctx)
	h.cr.ctx = context.Background()

	if !stop() {
		// The context ended and the session was torn down; whatever fn
		// returned is a consequence of that.
		err = ctx.Err()
	}
	if h.observer != nil {
		h.observer.ExchangeCompleted(op, time.Since(start), err)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, transport.ErrTimeout) {
		err = transport.ErrTimeout
	}
	h.log.WithError(err).WithField("op", op).Debug("exchange failed")
	return &transport.ConnectionError{Locator: h.locator, Op: op, Err: err}
}

func (h *Handle) send(ctx context.Context, cmd string) error {
	return h.conn.Write(ctx, []byte(cmd+h.cfg.Terminator))
}

// readLine reads up to the last byte of the terminator. An empty line left
// behind by a preceding block response is skipped.
func (h *Handle) readLine() (string, error) {
	term := h.cfg.Terminator
	last := term[len(term)-1]
	for {
		line, err := h.r.ReadString(last)
		if err != nil {
			return "", err
		}
		line = strings.TrimSuffix(line, term)
		line = strings.TrimRight(line, "\r\n")
		if line == "" && h.afterBlk {
			h.afterBlk = false
			continue
		}
		h.afterBlk = false
		return line, nil
	}
}

// Close ends the session. It is safe to call more than once.
func (h *Handle) Close() error {
	if !h.markClosed() {
		return nil
	}
	return h.conn.Close()
}

// markClosed flags the handle closed and reports whether this call did it.
func (h *Handle) markClosed() bool {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	return true
}

// Closed reports whether the session was closed or torn down by a
// cancelled exchange.
func (h *Handle) Closed() bool {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	return h.closed
}
