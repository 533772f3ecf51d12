package rrdstore

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	"github.com/opswatch/updateworker/errors"
	"github.com/opswatch/updateworker/logger"
	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/timespec"
)

// cacheDaemonBatchLimit is the maximum number of samples submitted in a
// single Update call when a cache-daemon socket is in use. rrdcached
// has a command-size limit; above this we fall back to one sample per
// call so a single update request never exceeds it.
const cacheDaemonBatchLimit = 32

// Store is the façade the worker talks to. It owns the last-committed
// "when" per file so updates can be filtered to strictly-increasing
// order before ever reaching the engine.
type Store struct {
	engine          Engine
	usingCacheDaemon bool

	mu       sync.Mutex
	lastWhen map[string]int64
}

// New returns a Store backed by the given engine. usingCacheDaemon
// should reflect whether RRDCACHED_ADDRESS is set and usable — it
// controls the per-call batch size limit, not which engine is used.
func New(engine Engine, usingCacheDaemon bool) *Store {
	return &Store{
		engine:           engine,
		usingCacheDaemon: usingCacheDaemon,
		lastWhen:         make(map[string]int64),
	}
}

// Create ensures the parent directory exists and creates the RRD file
// with archives derived from the given resolution profile. It is
// called on every poll cycle for every field, so an existing file is
// left untouched — recreating it would discard its history. Engine
// failures are logged and swallowed — the missing file is retried on
// the next cycle, same as a transient update failure.
func (s *Store) Create(path, service, field string, dsType rrdpath.DSType, min, max string, updateRate int64, archives []timespec.Archive, firstEpoch int64) {
	if _, err := os.Stat(path); err == nil {
		return
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0777); err != nil {
		logger.Errorw("failed to create rrd directory", logger.FieldPath, dir, logger.FieldError, err.Error())
		return
	}

	heartbeat := 2 * updateRate
	start := firstEpoch - updateRate

	if err := s.engine.Create(path, start, updateRate, heartbeat, dsType, min, max, archives); err != nil {
		logger.Errorw("rrd create failed",
			logger.FieldPath, path,
			logger.FieldService, service,
			logger.FieldField, field,
			logger.FieldErrorKind, errors.StoreError.String(),
			logger.FieldError, err.Error(),
		)
	}
}

// Update drops samples at or before the last committed "when" for this
// file, normalizes scientific notation, and submits the remainder in a
// single engine call — or one call per sample when a cache daemon is in
// use and more than cacheDaemonBatchLimit samples remain. It returns
// the last accepted "when" (or 0 if nothing was accepted).
func (s *Store) Update(path string, samples []Sample) int64 {
	s.mu.Lock()
	last := s.lastWhen[path]
	s.mu.Unlock()

	var accepted []Sample
	for _, sample := range samples {
		if sample.When <= last {
			continue
		}
		sample.Value = NormalizeValue(sample.Value)
		accepted = append(accepted, sample)
		last = sample.When
	}
	if len(accepted) == 0 {
		return 0
	}

	batchSize := len(accepted)
	if s.usingCacheDaemon && batchSize > cacheDaemonBatchLimit {
		batchSize = 1
	}

	var lastAccepted int64
	for i := 0; i < len(accepted); i += maxInt(batchSize, 1) {
		end := i + batchSize
		if end > len(accepted) {
			end = len(accepted)
		}
		batch := accepted[i:end]
		if err := s.engine.Update(path, batch); err != nil {
			logger.Errorw("rrd update failed",
				logger.FieldPath, path,
				logger.FieldErrorKind, errors.StoreError.String(),
				logger.FieldError, err.Error(),
			)
			continue
		}
		lastAccepted = batch[len(batch)-1].When
	}

	if lastAccepted > 0 {
		s.mu.Lock()
		s.lastWhen[path] = lastAccepted
		s.mu.Unlock()
	}
	return lastAccepted
}

// Tune applies the autotune subset (type, min, max) to an existing
// file. The production engine pushes each property with its own tune
// call, so one property's failure does not stop the others; any
// failure the engine reports is logged here.
func (s *Store) Tune(path string, dsType rrdpath.DSType, min, max string) {
	if err := s.engine.Tune(path, dsType, min, max); err != nil {
		logger.Errorw("rrd tune failed",
			logger.FieldPath, path,
			logger.FieldErrorKind, errors.StoreError.String(),
			logger.FieldError, err.Error(),
		)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

var scientificPattern = regexp.MustCompile(`[0-9.]+[Ee]([+-]?\d+)$`)

// NormalizeValue rewrites scientific-notation values to fixed-point
// decimal, because the on-disk engine rejects scientific input. A
// negative exponent -n keeps n+4 fractional digits, so a normalized
// mantissa retains at least 4 significant digits; any other exponent
// gives exactly 4 fractional digits. Non-scientific values (including
// "U") pass through unchanged.
func NormalizeValue(value string) string {
	m := scientificPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	digits := 4
	if exp, err := strconv.Atoi(m[1]); err == nil && exp < 0 {
		digits = -exp + 4
	}
	return strconv.FormatFloat(f, 'f', digits, 64)
}
