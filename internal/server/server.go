// Package server exposes an index over a line-delimited JSON protocol.
//
// Each connection gets a reader goroutine that frames lines and a writer
// goroutine that drains a buffered reply queue. Every decoded line is
// handed to one dispatch goroutine, which is the only code that touches
// the index, so the in-memory structures need no locking. Replies on one
// connection leave in the order their requests arrived.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jward/tuindex"
	"github.com/jward/tuindex/internal/ast"
	"github.com/jward/tuindex/internal/complete"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// MaxLineSize is the default bound on one protocol line.
const MaxLineSize = 16 << 20

// errLineTooLong reports a line over the size limit. The rest of the line
// has been discarded and the connection is still usable.
var errLineTooLong = errors.New("line too long")

// Index is what the server queries. *tuindex.Engine implements it.
type Index interface {
	Reload(ctx context.Context, files, flags []string) (*tuindex.ReloadResult, error)
	Refresh(ctx context.Context) (*tuindex.ReloadResult, error)
	Files() []string
	Definition(file string, line, column int) (ast.SourceLocation, bool)
	References(file string, line, column int) []ast.SourceLocation
	Complete(file string, line, column int, prefix *string, max int) ([]complete.Item, error)
	Suggest(query string, max int) []complete.Suggestion
	Query() *tuindex.QueryBuilder
}

// Server accepts connections and routes their messages to an Index.
type Server struct {
	index       Index
	logger      *slog.Logger
	root        string
	idleTimeout time.Duration
	queueSize   int
	maxLine     int
	watch       bool
	debounce    time.Duration

	mu       sync.Mutex
	listener net.Listener
	conns    map[*conn]struct{}
	seq      uint64
	started  bool
	closed   bool

	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan request
	changes chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	watcher *watcher
}

type request struct {
	c       *conn
	line    []byte
	tooLong bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRoot sets the directory relative tool and query paths resolve against.
func WithRoot(dir string) Option {
	return func(s *Server) {
		s.root = dir
	}
}

// WithIdleTimeout closes connections that send nothing for d. Zero
// disables eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.idleTimeout = d
	}
}

// WithQueueSize sets the per-connection reply queue length. A connection
// whose queue overflows is closed.
func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithMaxLineSize bounds one protocol line. Longer lines get an error
// reply and are skipped.
func WithMaxLineSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLine = n
		}
	}
}

// WithWatch re-runs the last reload when a loaded file changes on disk,
// after debounce of quiet.
func WithWatch(debounce time.Duration) Option {
	return func(s *Server) {
		s.watch = true
		s.debounce = debounce
	}
}

// New creates a Server over index. Nothing runs until Serve or ServeConn.
func New(index Index, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		index:     index,
		logger:    slog.Default(),
		root:      ".",
		queueSize: 64,
		maxLine:   MaxLineSize,
		conns:     map[*conn]struct{}{},
		ctx:       ctx,
		cancel:    cancel,
		inbox:     make(chan request),
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on network/addr ("tcp" or "unix") and serves.
func (s *Server) ListenAndServe(network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s %s: %w", network, addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It always returns a
// non-nil error; after Shutdown that error is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.startLocked()
	s.mu.Unlock()

	s.logger.Info("server.listening", "network", ln.Addr().Network(), "addr", ln.Addr().String())
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return ErrServerClosed
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		s.register(nc, ln.Addr().String())
	}
}

// ServeConn serves a single already-established connection, such as one
// end of net.Pipe.
func (s *Server) ServeConn(nc net.Conn) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		nc.Close()
		return
	}
	s.startLocked()
	s.mu.Unlock()
	s.register(nc, nc.LocalAddr().String())
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// startLocked launches the dispatch loop and the watcher once. s.mu held.
func (s *Server) startLocked() {
	if s.started {
		return
	}
	s.started = true

	if s.watch {
		w, err := newWatcher(s.debounce, s.signalChange, s.logger)
		if err != nil {
			s.logger.Warn("server.watch_disabled", "error", err)
		} else {
			s.watcher = w
			// Files loaded before the server started are watched too.
			w.update(s.index.Files())
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				w.run()
			}()
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatchLoop()
	}()
}

// mintSession derives a session id from the listener address and a
// sequence number.
func (s *Server) mintSession(addr string) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%s#%d", addr, n)))
}

func (s *Server) register(nc net.Conn, addr string) {
	c := &conn{
		nc:      nc,
		addr:    addr,
		remote:  nc.RemoteAddr().String(),
		session: s.mintSession(addr),
		out:     make(chan []byte, s.queueSize),
		closed:  make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		nc.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	s.logger.Debug("server.accepted", "remote", c.remote, "session", c.session)
	go func() {
		defer s.wg.Done()
		c.writeLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()
}

func (s *Server) deregister(c *conn) {
	c.close()
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.logger.Debug("server.closed", "remote", c.remote)
}

// readLoop frames lines and forwards each complete one to the dispatch
// loop. Every line already buffered is forwarded before the next read.
func (s *Server) readLoop(c *conn) {
	defer s.deregister(c)

	r := bufio.NewReaderSize(c.nc, 64*1024)
	for {
		if s.idleTimeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(s.idleTimeout))
		}
		line, err := readLine(r, s.maxLine)
		var req request
		switch {
		case errors.Is(err, errLineTooLong):
			s.logger.Debug("server.line_too_long", "remote", c.remote, "limit", s.maxLine)
			req = request{c: c, tooLong: true}
		case err != nil:
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.logger.Info("server.idle_evicted", "remote", c.remote)
			} else if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("server.read_error", "remote", c.remote, "error", err)
			}
			return
		case len(line) == 0:
			continue
		default:
			req = request{c: c, line: line}
		}
		select {
		case s.inbox <- req:
		case <-s.done:
			return
		case <-c.closed:
			return
		}
	}
}

// readLine returns the next line without its line ending. A line longer
// than limit is consumed through its newline and reported as
// errLineTooLong. A final unterminated line is returned before io.EOF.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > limit+2 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 && !tooLong {
				return trimEOL(line), nil
			}
			return nil, err
		}
		if tooLong {
			return nil, errLineTooLong
		}
		line = trimEOL(line)
		if len(line) > limit {
			return nil, errLineTooLong
		}
		return line, nil
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

func (s *Server) dispatchLoop() {
	for {
		select {
		case <-s.done:
			return
		case req := <-s.inbox:
			var resp *Message
			if req.tooLong {
				resp = errorReply(nil, "", CodeInvalidJSON, fmt.Sprintf("line exceeds %d bytes", s.maxLine))
			} else {
				resp = s.handle(req.c, req.line)
			}
			if resp != nil {
				s.send(req.c, resp)
			}
		case <-s.changes:
			s.refresh()
		}
	}
}

func (s *Server) send(c *conn, m *Message) {
	if !c.enqueue(m) {
		s.logger.Warn("server.queue_full", "session", c.session)
		c.close()
	}
}

func (s *Server) signalChange() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// refresh re-runs the last reload after a watched file changed.
func (s *Server) refresh() {
	res, err := s.index.Refresh(s.ctx)
	if err != nil {
		s.logger.Warn("server.refresh_failed", "error", err)
		return
	}
	s.logger.Info("server.refreshed", "files", res.Files, "parsed", res.Parsed, "reused", res.Reused)
}

// Shutdown stops accepting, closes every connection and waits for all
// server goroutines to exit or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	close(s.done)
	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.close()
	}
	if s.watcher != nil {
		s.watcher.close()
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		s.logger.Info("server.shutdown")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
