// Package rrdstore is a thin façade over the on-disk round-robin
// database engine: create (with a resolution profile), update
// (batched, monotonic-filtered), and tune (autotune fields only).
package rrdstore

import (
	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/timespec"
)

// dsInternalName is the fixed internal data-source identifier used
// inside every RRD file. The field name is carried in the filename
// (rrdpath.File), not inside the file itself — every file has exactly
// one data source, always named this way.
const dsInternalName = "value"

// Sample is one (when, value) pair destined for a single RRD file.
type Sample struct {
	When  int64
	Value string
}

// Engine is the black-box round-robin storage library, reduced to the
// three operations the worker needs. A real Engine is backed by
// librrd via ziutek/rrd; tests substitute a fake recording engine.
type Engine interface {
	Create(path string, start, step, heartbeat int64, dsType rrdpath.DSType, min, max string, archives []timespec.Archive) error
	Update(path string, samples []Sample) error
	Tune(path string, dsType rrdpath.DSType, min, max string) error
}
