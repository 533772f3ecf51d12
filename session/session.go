package session

import (
	"bufio"
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/opswatch/updateworker/errors"
	"github.com/opswatch/updateworker/logger"
)

// NodeSession is a strictly sequential, request/response conversation
// with one remote agent. Requests and responses are pipelined
// one-at-a-time; there is no concurrency inside a session.
type NodeSession struct {
	RunID string

	transport Transport
	reader    *bufio.Scanner
	limiter   *rate.Limiter
	timeout   time.Duration

	capabilities map[string]bool
	helper       *helperFingerprint
}

// Option configures a NodeSession at construction time.
type Option func(*NodeSession)

// WithRateLimit bounds how fast the session issues requests, so one
// slow or chatty agent cannot monopolize a worker's goroutine budget —
// a generalization of the teacher's per-call rate limiting to the
// transport layer.
func WithRateLimit(perSecond rate.Limit, burst int) Option {
	return func(s *NodeSession) {
		s.limiter = rate.NewLimiter(perSecond, burst)
	}
}

// New opens a session over an already-established transport. If the
// transport is indirect (forked a helper process), its PID is
// fingerprinted immediately so it can be safely reaped later even if
// the process table recycles the PID in between.
func New(transport Transport, timeout time.Duration, opts ...Option) *NodeSession {
	s := &NodeSession{
		RunID:        uuid.NewString(),
		transport:    transport,
		reader:       bufio.NewScanner(transport),
		timeout:      timeout,
		capabilities: make(map[string]bool),
	}
	s.reader.Buffer(make([]byte, 64*1024), 1<<20)

	if pid, ok := transport.HelperPID(); ok {
		if fp, err := fingerprintHelper(pid); err == nil {
			s.helper = &fp
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *NodeSession) send(ctx context.Context, line string) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return errors.WithKind(errors.Wrap(err, "rate limiter"), errors.TransportFailure)
		}
	}
	done := make(chan error, 1)
	go func() {
		_, err := s.transport.Write([]byte(line + "\n"))
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return errors.WithKind(errors.Wrapf(err, "writing %q", line), errors.TransportFailure)
		}
		return nil
	case <-ctx.Done():
		return errors.WithKind(errors.Wrap(ctx.Err(), "write timed out"), errors.TransportFailure)
	}
}

// readLine reads one line, honoring ctx cancellation even though
// bufio.Scanner itself has no deadline concept.
func (s *NodeSession) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		ok   bool
		err  error
	}
	out := make(chan result, 1)
	go func() {
		ok := s.reader.Scan()
		out <- result{line: s.reader.Text(), ok: ok, err: s.reader.Err()}
	}()

	select {
	case r := <-out:
		if r.err != nil {
			return "", errors.WithKind(errors.Wrap(r.err, "reading response"), errors.TransportFailure)
		}
		if !r.ok {
			return "", errors.WithKind(errors.New("connection closed unexpectedly"), errors.TransportFailure)
		}
		return r.line, nil
	case <-ctx.Done():
		return "", errors.WithKind(errors.Wrap(ctx.Err(), "read timed out"), errors.TransportFailure)
	}
}

// readUntilTerminator reads lines until one equal to "." (exclusive of
// the terminator itself). Spoolfetch needs line-at-a-time release
// instead, since its backlog replay may be arbitrarily large and its
// response carries a trailing cursor line that this helper's buffering
// would otherwise swallow as ordinary data; see Spoolfetch.
func (s *NodeSession) readUntilTerminator(ctx context.Context) ([]string, error) {
	var lines []string
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return lines, err
		}
		if line == "." {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func (s *NodeSession) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Negotiate sends "cap <space-separated caps>" and records which of
// the requested capabilities the agent actually acknowledges.
func (s *NodeSession) Negotiate(ctx context.Context, requested []string) (map[string]bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.send(ctx, "cap "+strings.Join(requested, " ")); err != nil {
		return nil, err
	}
	lines, err := s.readUntilTerminator(ctx)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		for _, cap := range strings.Fields(line) {
			s.capabilities[cap] = true
		}
	}
	return s.capabilities, nil
}

// HasCapability reports whether the agent acknowledged cap during
// negotiation.
func (s *NodeSession) HasCapability(cap string) bool {
	return s.capabilities[cap]
}

// ListPlugins sends "list" and returns the plugin names in randomized
// order — fair scheduling under a timeout budget, so a session that
// runs out of time doesn't always starve the plugins late in a fixed
// list.
func (s *NodeSession) ListPlugins(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.send(ctx, "list"); err != nil {
		return nil, err
	}
	lines, err := s.readUntilTerminator(ctx)
	if err != nil {
		return nil, err
	}
	var plugins []string
	for _, line := range lines {
		plugins = append(plugins, strings.Fields(line)...)
	}
	rand.Shuffle(len(plugins), func(i, j int) { plugins[i], plugins[j] = plugins[j], plugins[i] })
	return plugins, nil
}

// RequestConfig sends "config <plugin>" and returns the raw response
// lines for the caller's wireproto parser.
func (s *NodeSession) RequestConfig(ctx context.Context, plugin string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.send(ctx, "config "+plugin); err != nil {
		return nil, err
	}
	return s.readUntilTerminator(ctx)
}

// RequestFetch sends "fetch <plugin>" and returns the raw response
// lines.
func (s *NodeSession) RequestFetch(ctx context.Context, plugin string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.send(ctx, "fetch "+plugin); err != nil {
		return nil, err
	}
	return s.readUntilTerminator(ctx)
}

// Spoolfetch sends "spoolfetch <cursor>" and streams the response to
// handler line by line, never buffering the full backlog replay. The
// response ends with a cursor line that is not itself protocol data —
// it is withheld from handler and returned as the new cursor, one line
// behind the read so the terminator can still be recognized before the
// final data line is released. A "no spoolfetch data" condition from
// the agent is surfaced to the caller as NoSpoolfetchData and must be
// treated as a silent, non-fatal skip.
func (s *NodeSession) Spoolfetch(ctx context.Context, cursor string, handler func(line string) error) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.send(ctx, "spoolfetch "+cursor); err != nil {
		return "", err
	}

	var pending string
	havePending := false

	for {
		line, err := s.readLine(ctx)
		if err != nil {
			if strings.Contains(err.Error(), "no spoolfetch data") {
				return "", errors.WithKind(err, errors.NoSpoolfetchData)
			}
			return "", err
		}
		if line == "." {
			if havePending {
				return pending, nil
			}
			return "", nil
		}
		if havePending {
			if err := handler(pending); err != nil {
				return "", err
			}
		}
		pending = line
		havePending = true
	}
}

// Quit sends "quit" and does not wait for a response — the agent may
// close the connection immediately.
func (s *NodeSession) Quit(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.send(ctx, "quit")
}

// Close tears the session down unconditionally: it sends quit
// (best-effort), closes the transport, and reaps any forked helper
// process. It is safe to call on every exit path, success or failure.
func (s *NodeSession) Close(ctx context.Context) {
	_ = s.Quit(ctx)
	if err := s.transport.Close(); err != nil {
		logger.Warnw("transport close failed", logger.FieldError, err.Error())
	}
	if s.helper != nil {
		if err := reapOrphan(ctx, *s.helper); err != nil {
			logger.Warnw("failed to reap helper process", "pid", s.helper.pid, logger.FieldError, err.Error())
		}
	}
}
