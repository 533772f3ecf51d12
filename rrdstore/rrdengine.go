package rrdstore

import (
	"errors"
	"time"

	"github.com/ziutek/rrd"

	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/timespec"
)

func toTime(epoch int64) time.Time {
	return time.Unix(epoch, 0)
}

// rrdEngine implements Engine against a real on-disk RRD file via
// ziutek/rrd's cgo binding to librrd. It is the CGO facade this system
// needs in place of a SQL engine — grounded in the teacher's own
// pattern of a thin Go wrapper around a C storage library.
type rrdEngine struct{}

// NewEngine returns the production Engine backed by librrd.
func NewEngine() Engine {
	return rrdEngine{}
}

func (rrdEngine) Create(path string, start, step, heartbeat int64, dsType rrdpath.DSType, min, max string, archives []timespec.Archive) error {
	c := rrd.NewCreator(path, toTime(start), uint(step))
	c.DS(dsInternalName, string(dsType), heartbeat, min, max)
	for _, a := range archives {
		c.RRA("AVERAGE", 0.5, uint(a.Multiplier), uint(a.Count))
	}
	// overwrite=false: a file already on disk holds history that must
	// survive every later poll cycle calling Create again for the same
	// data source. Creator.Create fails harmlessly when the file exists.
	return c.Create(false)
}

func (rrdEngine) Update(path string, samples []Sample) error {
	u := rrd.NewUpdater(path)
	u.SetTemplate(dsInternalName)
	for _, s := range samples {
		u.Update(toTime(s.When), s.Value)
	}
	return u.Update()
}

// Tune pushes type, min and max with separate tune calls, so a failure
// on one property does not stop the others; all failures are returned
// joined.
func (rrdEngine) Tune(path string, dsType rrdpath.DSType, min, max string) error {
	var errs []error
	t := rrd.NewTuner(path)
	t.DSType(dsInternalName, string(dsType))
	errs = append(errs, t.Tune())
	if min != "" {
		t := rrd.NewTuner(path)
		t.DSMin(dsInternalName, min)
		errs = append(errs, t.Tune())
	}
	if max != "" {
		t := rrd.NewTuner(path)
		t.DSMax(dsInternalName, max)
		errs = append(errs, t.Tune())
	}
	return errors.Join(errs...)
}
