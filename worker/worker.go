// Package worker orchestrates one full polling cycle for one node:
// opening a session, branching on capabilities, feeding parsed wire
// protocol events through drift detection and storage, and persisting
// updated state.
package worker

import (
	"context"
	"os"
	"time"

	"github.com/opswatch/updateworker/carbon"
	"github.com/opswatch/updateworker/config"
	"github.com/opswatch/updateworker/drift"
	"github.com/opswatch/updateworker/errors"
	"github.com/opswatch/updateworker/freshness"
	"github.com/opswatch/updateworker/logger"
	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/rrdstore"
	"github.com/opswatch/updateworker/session"
	"github.com/opswatch/updateworker/state"
	"github.com/opswatch/updateworker/timespec"
	"github.com/opswatch/updateworker/wireproto"
)

// Dialer opens a transport to a resolved address. It is the transport
// layer's external interface into this package — TCP, an SSH tunnel,
// or a local forked command are all valid implementations.
type Dialer func(ctx context.Context, address string, port int) (session.Transport, error)

// Dependencies are the collaborators a Worker needs, all external to
// the core logic this package implements.
type Dependencies struct {
	Dial           Dialer
	Resolve        Resolver
	Store          *rrdstore.Store
	DialCarbon     func(host config.HostDescriptor, cfg *config.Config) *carbon.Sink
	SessionTimeout time.Duration
	CurrentVersion string
}

// Worker orchestrates one polling cycle for one node using all of
// C1–C8.
type Worker struct {
	deps Dependencies
}

func New(deps Dependencies) *Worker {
	if deps.Resolve == nil {
		deps.Resolve = NetResolver
	}
	return &Worker{deps: deps}
}

// Result is what Run reports to the dispatcher on success.
type Result struct {
	ElapsedSeconds float64
}

// Run executes one full cycle against host, using and updating st in
// place. Regardless of success, the session and Carbon sink are always
// torn down. A protocol-level failure is logged and returned as an
// error; the dispatcher decides whether to retry.
func (w *Worker) Run(ctx context.Context, host config.HostDescriptor, cfg *config.Config, st *state.State) (Result, error) {
	start := time.Now()

	address := ResolveAddress(host.GroupName, host.HostName, w.deps.Resolve)
	transport, err := w.deps.Dial(ctx, address, host.Port)
	if err != nil {
		logger.Errorw("failed to open transport",
			logger.FieldHost, host.HostName, logger.FieldErrorKind, errors.TransportFailure.String(), logger.FieldError, err.Error())
		return Result{}, errors.WithKind(errors.Wrapf(err, "dialing %s", address), errors.TransportFailure)
	}

	sess := session.New(transport, w.deps.SessionTimeout)
	defer sess.Close(ctx)

	var sink *carbon.Sink
	if w.deps.DialCarbon != nil {
		sink = w.deps.DialCarbon(host, cfg)
		defer sink.Close()
	}

	if _, err := sess.Negotiate(ctx, []string{"multigraph", "dirtyconfig", "spool"}); err != nil {
		logger.Errorw("capability negotiation failed", logger.FieldHost, host.HostName, logger.FieldError, err.Error())
		return Result{}, err
	}

	clock := freshness.Restore(st.LastUpdated)
	cursor := freshness.NewSpoolCursor(st.Spoolfetch)

	run := &runContext{
		worker: w,
		host:   host,
		cfg:    cfg,
		st:     st,
		sink:   sink,
		clock:  clock,
	}

	if sess.HasCapability("spool") {
		if err := run.runSpoolfetch(ctx, sess, cursor); err != nil && !errors.IsKind(err, errors.NoSpoolfetchData) {
			logger.Errorw("spoolfetch failed", logger.FieldHost, host.HostName, logger.FieldError, err.Error())
			return Result{}, err
		}
	} else if err := run.runPluginList(ctx, sess); err != nil {
		logger.Errorw("plugin polling failed", logger.FieldHost, host.HostName, logger.FieldError, err.Error())
		return Result{}, err
	}

	st.LastUpdated = clock.Snapshot()
	st.Spoolfetch = cursor.Value()
	st.OldConfigVersion = w.deps.CurrentVersion

	return Result{ElapsedSeconds: time.Since(start).Seconds()}, nil
}

// runContext carries the state threaded through one Run call's plugin
// and spoolfetch processing, kept off Worker itself so Worker stays
// safe for concurrent Run calls against different hosts.
type runContext struct {
	worker *Worker
	host   config.HostDescriptor
	cfg    *config.Config
	st     *state.State
	sink   *carbon.Sink
	clock  *freshness.Clock
}

func (r *runContext) runPluginList(ctx context.Context, sess *session.NodeSession) error {
	plugins, err := sess.ListPlugins(ctx)
	if err != nil {
		return err
	}

	limit := r.cfg.LimitSet()
	for _, plugin := range plugins {
		if limit != nil {
			if _, ok := limit[plugin]; !ok {
				continue
			}
		}
		if err := r.pollPlugin(ctx, sess, plugin); err != nil {
			return errors.Wrapf(err, "polling plugin %s", plugin)
		}
	}
	return nil
}

func (r *runContext) pollPlugin(ctx context.Context, sess *session.NodeSession, plugin string) error {
	configLines, err := sess.RequestConfig(ctx, plugin)
	if err != nil {
		return err
	}

	parser := wireproto.NewParser(plugin, r.rateLookup)
	events, dirtySamples, lastTS, err := parser.ParseConfigResponse(configLines)
	if err != nil {
		return err
	}

	builds := map[string]*serviceBuild{}
	for _, ev := range events {
		applyEvent(builds, ev)
	}

	if len(dirtySamples) > 0 {
		r.commitSamples(builds, dirtySamples)
		r.reconcileAndCreate(builds)
		r.clock.MarkUpdated(plugin)
		return nil
	}

	r.reconcileAndCreate(builds)

	rate, _ := config.ResolveUpdateRate(r.cfg.UpdateRate, r.host.ServiceConfig[plugin], nil)
	if r.clock.IsFreshEnough(plugin, time.Duration(rate)*time.Second) {
		return nil
	}

	fetchLines, err := sess.RequestFetch(ctx, plugin)
	if err != nil {
		return err
	}
	samples, err := parser.ParseFetchResponse(fetchLines)
	if err != nil {
		return err
	}
	r.commitSamples(builds, samples)
	r.clock.MarkUpdated(plugin)
	_ = lastTS
	return nil
}

func (r *runContext) runSpoolfetch(ctx context.Context, sess *session.NodeSession, cursor *freshness.SpoolCursor) error {
	parser := wireproto.NewParser("", r.rateLookup)
	builds := map[string]*serviceBuild{}
	var samples []wireproto.Sample

	newCursor, err := sess.Spoolfetch(ctx, cursor.Value(), func(line string) error {
		ev, perr := parser.ParseConfigLine(line)
		if perr != nil {
			return perr
		}
		if ev == nil {
			return nil
		}
		if s, ok := ev.(wireproto.Sample); ok {
			samples = append(samples, s)
			return nil
		}
		applyEvent(builds, ev)
		return nil
	})
	if err != nil {
		return err
	}

	r.reconcileAndCreate(builds)
	r.commitSamples(builds, samples)
	if newCursor != "" {
		cursor.Advance(newCursor)
	}
	return nil
}

func (r *runContext) rateLookup(service string) (int64, bool) {
	return config.ResolveUpdateRate(r.cfg.UpdateRate, r.host.ServiceConfig[service], nil)
}

// reconcileAndCreate handles MissingDeclaration skipping, ConfigDrift
// reconciliation, and RRD file creation for every field seen in
// builds. It does not write samples — that happens in commitSamples.
func (r *runContext) reconcileAndCreate(builds map[string]*serviceBuild) {
	for service, b := range builds {
		for _, fieldName := range b.Order {
			f := b.Fields[fieldName]
			if f.Label == "" {
				logger.Errorw("field has no label, skipping",
					logger.FieldService, service, logger.FieldField, fieldName,
					logger.FieldErrorKind, errors.MissingDeclaration.String())
				continue
			}

			dsType := f.Type
			if dsType == "" {
				dsType = rrdpath.Gauge
			}
			path := rrdpath.File(r.cfg.DBDir, r.host.HostPath(), service, fieldName, dsType)

			oldFieldName := fieldName
			if f.OldName != "" {
				oldFieldName = f.OldName
			}

			previous := declarationsFromState(r.st)
			result := drift.Reconcile(previous, service, fieldName, f.declaration(),
				previousPath(r.st, r.cfg, r.host, service, oldFieldName), path,
				r.st.OldConfigVersion, r.worker.deps.CurrentVersion, drift.OSFileExists)

			switch result.Action {
			case drift.Rename:
				logger.Warnw("renaming rrd file", logger.FieldPath, result.OldPath, "new_path", result.NewPath)
				if err := os.Rename(result.OldPath, result.NewPath); err != nil {
					logger.Errorw("rrd rename failed",
						logger.FieldPath, result.OldPath, "new_path", result.NewPath,
						logger.FieldErrorKind, errors.StoreError.String(), logger.FieldError, err.Error())
				} else {
					r.worker.deps.Store.Tune(result.NewPath, dsType, f.Min, f.Max)
				}
			case drift.Tune:
				r.worker.deps.Store.Tune(result.NewPath, dsType, f.Min, f.Max)
			case drift.Warn:
				logger.Warnw("config drift ambiguous, manual merge required",
					logger.FieldErrorKind, errors.DriftAmbiguity.String(),
					logger.FieldPath, result.OldPath, "new_path", result.NewPath)
			}

			rate, _ := config.ResolveUpdateRate(r.cfg.UpdateRate, r.host.ServiceConfig[service], f.Attrs)
			profile := config.ResolveGraphDataSize(r.cfg.GraphDataSize, r.host.ServiceConfig[service], f.Attrs)
			archives := resolveArchives(profile, rate)

			r.worker.deps.Store.Create(path, service, fieldName, dsType, f.Min, f.Max, rate, archives, time.Now().Unix())
			r.recordDeclaration(service, fieldName, f)
		}
	}
}

func resolveArchives(profile string, updateRate int64) []timespec.Archive {
	switch {
	case profile == "huge":
		return timespec.HugeProfile()
	case len(profile) > 7 && profile[:7] == "custom ":
		return timespec.ParseCustomResolution(profile[7:], updateRate)
	default:
		return timespec.NormalProfile()
	}
}

func (r *runContext) commitSamples(builds map[string]*serviceBuild, samples []wireproto.Sample) {
	for _, s := range samples {
		b := builds[s.Service]
		var dsType rrdpath.DSType = rrdpath.Gauge
		if b != nil {
			if f, ok := b.Fields[s.Field]; ok {
				if f.Label == "" {
					continue
				}
				if f.Type != "" {
					dsType = f.Type
				}
			}
		}
		path := rrdpath.File(r.cfg.DBDir, r.host.HostPath(), s.Service, s.Field, dsType)
		when := r.worker.deps.Store.Update(path, []rrdstore.Sample{{When: s.When, Value: s.Value}})
		if when == 0 {
			continue
		}
		r.st.RecordSample(path, when, s.Value)
		if r.sink != nil {
			r.sink.Emit(s.Service, s.Field, s.Value, when)
		}
	}
}

func (r *runContext) recordDeclaration(service, field string, f *fieldDecl) {
	key := service + "\x00" + field
	r.st.Declarations[key] = state.DeclarationRecord{
		Type: string(f.Type), Min: f.Min, Max: f.Max, OldName: f.OldName,
	}
}

func declarationsFromState(st *state.State) map[string]drift.Declaration {
	out := make(map[string]drift.Declaration, len(st.Declarations))
	for k, v := range st.Declarations {
		out[k] = drift.Declaration{Type: rrdpath.DSType(v.Type), Min: v.Min, Max: v.Max, OldName: v.OldName}
	}
	return out
}

// previousPath reconstructs the file path the previous run would have
// used for (service, field), from the persisted declaration's type —
// needed because a type change alone changes the filename.
func previousPath(st *state.State, cfg *config.Config, host config.HostDescriptor, service, field string) string {
	key := service + "\x00" + field
	rec, ok := st.Declarations[key]
	if !ok {
		return rrdpath.File(cfg.DBDir, host.HostPath(), service, field, rrdpath.Gauge)
	}
	return rrdpath.File(cfg.DBDir, host.HostPath(), service, field, rrdpath.DSType(rec.Type))
}
