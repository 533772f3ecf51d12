// Package session implements the ordered conversation with one remote
// monitoring agent: capability negotiation, plugin listing, per-plugin
// config/fetch, spoolfetch streaming, quit, and orphan-process reaping.
package session

import (
	"io"
)

// Transport is the line-oriented conduit to a remote agent. It is an
// external collaborator (TCP, SSH tunnel, local command) — this
// package only depends on the Reader/Writer/Closer shape plus the
// optional helper-process PID a forked ("indirect") transport
// publishes so the session can reap it on exit.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer

	// HelperPID reports the PID of a forked helper process, if this
	// transport is indirect. ok is false for transports that never
	// fork (e.g. a direct TCP connection).
	HelperPID() (pid int, ok bool)
}
