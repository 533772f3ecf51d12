// Package rrdpath derives the on-disk file path for a data source's
// round-robin database, deterministically from the host path, service,
// field, and declared type.
package rrdpath

import (
	"path/filepath"
	"strings"
)

// DSType is one of the four RRD data-source types.
type DSType string

const (
	Gauge    DSType = "GAUGE"
	Counter  DSType = "COUNTER"
	Derive   DSType = "DERIVE"
	Absolute DSType = "ABSOLUTE"
)

// Initial returns the first lower-cased character used to disambiguate
// the filename when a data source's type changes between runs.
func (t DSType) Initial() string {
	s := string(t)
	if s == "" {
		return strings.ToLower(string(Gauge)[0:1])
	}
	return strings.ToLower(s[:1])
}

// ParseDSType maps a declared type string to a DSType, defaulting to
// Gauge for anything unrecognised or empty.
func ParseDSType(s string) DSType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Counter):
		return Counter
	case string(Derive):
		return Derive
	case string(Absolute):
		return Absolute
	default:
		return Gauge
	}
}

// sanitizeHostPath replaces characters that would otherwise be
// interpreted as directory separators or have meaning to a shell/URL
// scheme once they reach the filesystem.
func sanitizeHostPath(hostPath string) string {
	r := strings.NewReplacer(";", "/", ":", "/")
	return r.Replace(hostPath)
}

// sanitizeService flattens multigraph dotted names into filename-safe
// hyphenated segments.
func sanitizeService(service string) string {
	return strings.ReplaceAll(service, ".", "-")
}

// File returns the deterministic on-disk path for a data source.
// It is a pure function of (hostPath, service, field, dsType) — any
// change to one of these components implies a rename or a new file.
func File(dbdir, hostPath, service, field string, dsType DSType) string {
	name := sanitizeHostPath(hostPath) + "-" + sanitizeService(service) + "-" + field + "-" + dsType.Initial() + ".rrd"
	return filepath.Join(dbdir, name)
}
