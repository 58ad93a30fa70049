// Package server accepts TCP connections and answers one request per
// connection with the bytes produced by the response builder.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"fserve/internal/accesslog"
	"fserve/internal/errors"
	"fserve/internal/logging"
	"fserve/internal/paths"
	"fserve/internal/request"
	"fserve/internal/response"
)

// DefaultMaxRequestBytes caps a request head when Options leaves it unset.
const DefaultMaxRequestBytes = 8192

// Recorder receives one entry per handled connection.
type Recorder interface {
	Record(ctx context.Context, e accesslog.Entry) error
}

// Options configures a Server.
type Options struct {
	Root            string
	MaxRequestBytes int

	// Zero disables the deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Limits   LimiterConfig
	Recorder Recorder // optional
	Logger   *logging.Logger
}

// Server serves files beneath Root.
type Server struct {
	root     string
	opts     Options
	limiter  *Limiter
	logger   *logging.Logger
	recorder Recorder

	accepted atomic.Int64
	served   atomic.Int64
	dropped  atomic.Int64
	shed     atomic.Int64

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	addr  net.Addr
	wg    sync.WaitGroup
}

// New checks that opts.Root is a readable directory and prepares a server
// for it.
func New(opts Options) (*Server, error) {
	root, err := paths.Canonicalize(opts.Root)
	if err != nil {
		return nil, errors.Filesystem("canonicalize root", opts.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Filesystem("stat root", root, err)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.FilesystemError, fmt.Sprintf("root %s is not a directory", root), nil)
	}

	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = DefaultMaxRequestBytes
	}
	if opts.Limits.MaxConcurrent <= 0 {
		opts.Limits = DefaultLimiterConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Server{
		root:     root,
		opts:     opts,
		limiter:  NewLimiter(opts.Limits),
		logger:   logger,
		recorder: opts.Recorder,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Root returns the canonical served directory.
func (s *Server) Root() string {
	return s.root
}

// Addr returns the listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New(errors.TransportError, "failed to listen on "+addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, handling each on its
// own goroutine. On shutdown it closes ln, interrupts connections still
// waiting for request bytes, and returns once every handler has finished.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("Serving directory", map[string]interface{}{
		"addr":          ln.Addr().String(),
		"root":          s.root,
		"maxConcurrent": s.limiter.Stats().MaxConcurrent,
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
			s.interruptReads()
		case <-stop:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				s.logger.Info("Server stopped", map[string]interface{}{
					"served":  s.served.Load(),
					"dropped": s.dropped.Load(),
					"shed":    s.shed.Load(),
				})
				return nil
			}

			if retryableAccept(err) {
				backoff = nextBackoff(backoff)
				s.logger.Warn("Accept failed, retrying", map[string]interface{}{
					"error":   err.Error(),
					"backoff": backoff.String(),
				})
				time.Sleep(backoff)
				continue
			}

			s.wg.Wait()
			return errors.New(errors.TransportError, "accept failed", err)
		}
		backoff = 0

		s.accepted.Add(1)
		s.track(conn)
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

// retryableAccept reports whether an Accept failure is transient: a
// timeout, descriptor or buffer exhaustion, or a connection aborted before
// it was accepted. A closed listener is never retried.
func retryableAccept(err error) bool {
	if stderrors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.EMFILE, syscall.ENFILE, syscall.ENOBUFS, syscall.ENOMEM, syscall.ECONNABORTED} {
		if stderrors.Is(err, errno) {
			return true
		}
	}
	var te interface{ Temporary() bool }
	return stderrors.As(err, &te) && te.Temporary()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// interruptReads unblocks handlers stuck reading a request. Responses
// already being written are left to finish.
func (s *Server) interruptReads() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
}

// handle serves a single connection: acquire a slot, read, decode, build,
// write, close. Any failure before the write drops the connection without
// sending a byte.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	start := time.Now()
	entry := accesslog.Entry{
		ConnID:     uuid.NewString(),
		RemoteAddr: conn.RemoteAddr().String(),
	}

	defer s.wg.Done()
	defer s.untrack(conn)
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			s.dropped.Add(1)
			s.logger.Error("Panic recovered", map[string]interface{}{
				"conn":  entry.ConnID,
				"error": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			})
			err := errors.New(errors.InternalError, "panic", fmt.Errorf("%v", r))
			entry.Status = 0
			entry.Code = string(err.Code)
			entry.Error = err.Error()
			s.record(ctx, entry, start)
		}
	}()

	if !s.limiter.Acquire(ctx) {
		s.shed.Add(1)
		s.logger.Warn("Connection shed", map[string]interface{}{
			"conn":   entry.ConnID,
			"remote": entry.RemoteAddr,
			"queued": s.limiter.Stats().QueueLength,
		})
		entry.Error = "shed: connection limit reached"
		s.record(ctx, entry, start)
		return
	}
	defer s.limiter.Release()

	if err := s.serveConn(ctx, conn, &entry); err != nil {
		s.dropped.Add(1)
		fields := map[string]interface{}{
			"conn":   entry.ConnID,
			"remote": entry.RemoteAddr,
			"code":   string(errors.CodeOf(err)),
			"error":  err.Error(),
		}
		if errors.HasCode(err, errors.FilesystemError) || errors.HasCode(err, errors.InternalError) {
			s.logger.Error("Connection dropped", fields)
		} else {
			s.logger.Debug("Connection dropped", fields)
		}
		entry.Code = string(errors.CodeOf(err))
		entry.Error = err.Error()
		s.record(ctx, entry, start)
		return
	}

	s.served.Add(1)
	s.logger.Info("Served", map[string]interface{}{
		"conn":     entry.ConnID,
		"method":   entry.Method,
		"path":     entry.RequestPath,
		"status":   entry.Status,
		"bytes":    entry.Bytes,
		"duration": time.Since(start).Round(time.Microsecond).String(),
	})
	s.record(ctx, entry, start)
}

// serveConn runs the read-decode-build-write pipeline, filling in entry as
// it learns more. An error means nothing was written unless it is a
// TransportError from the write itself.
func (s *Server) serveConn(ctx context.Context, conn net.Conn, entry *accesslog.Entry) error {
	if ctx.Err() != nil {
		_ = conn.SetReadDeadline(time.Now())
	} else if s.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
	raw, err := readRequest(conn, s.opts.MaxRequestBytes)
	if err != nil {
		return errors.New(errors.TransportError, "read failed", err)
	}

	req, err := request.Decode(raw)
	if err != nil {
		return err
	}
	entry.Method = req.Method
	entry.Target = req.Target
	entry.RequestPath = req.Path

	resp, err := response.Build(s.root, req)
	if err != nil {
		return err
	}
	entry.ResolvedPath = resp.ResolvedPath
	entry.Kind = resp.Kind.String()
	entry.Escaped = resp.Escaped

	if resp.Escaped {
		s.logger.Warn("Path escapes root", map[string]interface{}{
			"conn":   entry.ConnID,
			"remote": entry.RemoteAddr,
			"path":   req.Path,
		})
	}

	if s.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	n, err := conn.Write(resp.Wire)
	entry.Bytes = n
	if err != nil {
		return errors.New(errors.TransportError, "write failed", err)
	}
	entry.Status = resp.Status.Code()
	return nil
}

func (s *Server) record(ctx context.Context, e accesslog.Entry, start time.Time) {
	if s.recorder == nil {
		return
	}
	e.DurationMs = time.Since(start).Milliseconds()
	e.CreatedAt = start

	// Entries for connections finishing during shutdown are still kept.
	if err := s.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("Failed to record access", map[string]interface{}{
			"conn":  e.ConnID,
			"error": err.Error(),
		})
	}
}

// Stats is a snapshot of server counters.
type Stats struct {
	Accepted int64        `json:"accepted"`
	Served   int64        `json:"served"`
	Dropped  int64        `json:"dropped"`
	Shed     int64        `json:"shed"`
	InFlight int64        `json:"inFlight"`
	Limiter  LimiterStats `json:"limiter"`
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	ls := s.limiter.Stats()
	return Stats{
		Accepted: s.accepted.Load(),
		Served:   s.served.Load(),
		Dropped:  s.dropped.Load(),
		Shed:     s.shed.Load(),
		InFlight: ls.InFlight,
		Limiter:  ls,
	}
}
