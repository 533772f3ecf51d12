// Package carbon implements the optional streaming metric relay sink:
// a best-effort TCP line emitter that never blocks the rest of a run.
package carbon

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/opswatch/updateworker/logger"
	"github.com/opswatch/updateworker/rrdstore"
)

// Sink emits Carbon plaintext protocol lines:
// "<prefix><reverse-dotted-hostname>.<service>.<field> <value> <when>\n".
// Connection failure at open is logged at WARN and the sink becomes a
// permanent no-op for the rest of the run — Carbon is auxiliary, never
// blocking, and every error here is swallowed.
type Sink struct {
	prefix string
	host   reverseHost
	conn   net.Conn
}

// Dial opens a TCP connection to addr ("host:port") for the duration
// of one worker run. Failure is non-fatal: the returned Sink's Emit
// becomes a no-op, and Close is always safe to call.
func Dial(addr, prefix, hostName string, timeout time.Duration) *Sink {
	s := &Sink{prefix: normalizePrefix(prefix), host: reverseHost(hostName)}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		logger.Warnw("carbon sink unavailable, continuing without it",
			logger.FieldAddress, addr, logger.FieldError, err.Error())
		return s
	}
	s.conn = conn
	return s
}

func normalizePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, ".") {
		return prefix + "."
	}
	return prefix
}

// reverseHost renders "a.b.c" as "c.b.a", matching the reverse-dotted
// hostname segment of the Carbon metric path.
type reverseHost string

func (h reverseHost) String() string {
	parts := strings.Split(string(h), ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// Emit writes one metric line. Any write error is logged at WARN and
// otherwise swallowed; it does not abort the caller.
func (s *Sink) Emit(service, field, value string, when int64) {
	if s.conn == nil {
		return
	}
	normalized := rrdstore.NormalizeValue(value)
	line := fmt.Sprintf("%s%s.%s.%s %s %d\n", s.prefix, s.host.String(), service, field, normalized, when)
	if _, err := s.conn.Write([]byte(line)); err != nil {
		logger.Warnw("carbon write failed", logger.FieldError, err.Error())
	}
}

// Close tears down the connection, if one was established. Safe to
// call on a sink that never connected.
func (s *Sink) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
