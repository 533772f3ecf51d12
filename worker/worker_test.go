package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/updateworker/config"
	"github.com/opswatch/updateworker/internal/testsupport"
	"github.com/opswatch/updateworker/rrdstore"
	"github.com/opswatch/updateworker/session"
	"github.com/opswatch/updateworker/state"
	"github.com/opswatch/updateworker/worker"
)

func scriptedTransport(lines ...string) *testsupport.FakeTransport {
	script := ""
	for _, l := range lines {
		script += l + "\n"
	}
	return testsupport.NewFakeTransport(script)
}

func newTestWorker(engine *testsupport.FakeEngine, transport *testsupport.FakeTransport) *worker.Worker {
	return worker.New(worker.Dependencies{
		Dial: func(ctx context.Context, address string, port int) (session.Transport, error) {
			return transport, nil
		},
		Resolve:        func(name string) bool { return false },
		Store:          rrdstore.New(engine, false),
		SessionTimeout: 2 * time.Second,
		CurrentVersion: "1.0",
	})
}

func TestRunFreshHostOnePluginOneField(t *testing.T) {
	transport := scriptedTransport(
		"multigraph dirtyconfig",
		".",
		"load",
		".",
		"graph_title System Load",
		"load.label load",
		"load.type GAUGE",
		".",
		"load.value 0.42",
		".",
	)
	engine := testsupport.NewFakeEngine()
	w := newTestWorker(engine, transport)

	host := config.HostDescriptor{HostName: "db1"}
	cfg := &config.Config{DBDir: "/var/lib/rrd"}
	st := state.New()

	result, err := w.Run(context.Background(), host, cfg, st)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.ElapsedSeconds, 0.0)

	require.Len(t, engine.Created, 1)
	assert.Equal(t, "/var/lib/rrd/db1-load-load-g.rrd", engine.Created[0].Path)

	require.Len(t, engine.Updated, 1)
	assert.Equal(t, "0.42", engine.Updated[0].Samples[0].Value)
}

func TestRunDirtyConfigSkipsSeparateFetch(t *testing.T) {
	transport := scriptedTransport(
		"multigraph dirtyconfig",
		".",
		"cpu",
		".",
		"cpu.label CPU",
		"cpu.type DERIVE",
		"cpu.value 123456",
		".",
	)
	engine := testsupport.NewFakeEngine()
	w := newTestWorker(engine, transport)

	host := config.HostDescriptor{HostName: "db1"}
	cfg := &config.Config{DBDir: "/var/lib/rrd"}
	st := state.New()

	_, err := w.Run(context.Background(), host, cfg, st)
	require.NoError(t, err)

	require.Len(t, engine.Updated, 1)
	assert.Equal(t, "123456", engine.Updated[0].Samples[0].Value)

	// Only "cap", "list", "config", "quit" sent - no separate "fetch".
	for _, sent := range transport.Sent {
		assert.NotContains(t, sent, "fetch cpu")
	}
}

func TestRunMultigraphCreatesSeparateFiles(t *testing.T) {
	transport := scriptedTransport(
		"multigraph dirtyconfig",
		".",
		"disk",
		".",
		"graph_title Disk",
		"multigraph disk.read",
		"read.label r",
		"read.type COUNTER",
		"multigraph disk.write",
		"write.label w",
		"write.type COUNTER",
		".",
		".",
	)
	engine := testsupport.NewFakeEngine()
	w := newTestWorker(engine, transport)

	host := config.HostDescriptor{HostName: "db1"}
	cfg := &config.Config{DBDir: "/var/lib/rrd"}
	st := state.New()

	_, err := w.Run(context.Background(), host, cfg, st)
	require.NoError(t, err)

	require.Len(t, engine.Created, 2)
	var paths []string
	for _, c := range engine.Created {
		paths = append(paths, c.Path)
	}
	assert.Contains(t, paths, "/var/lib/rrd/db1-disk-read-read-c.rrd")
	assert.Contains(t, paths, "/var/lib/rrd/db1-disk-write-write-c.rrd")
}

func TestRunRenamesExistingFileWhenOldNameDeclared(t *testing.T) {
	transport := scriptedTransport(
		"multigraph dirtyconfig",
		".",
		"load",
		".",
		"load5.label Load5",
		"load5.type GAUGE",
		"load5.min 0",
		"load5.max 100",
		"load5.oldname load",
		"load5.value 0.77",
		".",
	)
	engine := testsupport.NewFakeEngine()
	w := newTestWorker(engine, transport)

	dbdir := t.TempDir()
	oldPath := filepath.Join(dbdir, "db1-load-load-g.rrd")
	newPath := filepath.Join(dbdir, "db1-load-load5-g.rrd")
	require.NoError(t, os.WriteFile(oldPath, []byte("old history data"), 0644))

	host := config.HostDescriptor{HostName: "db1"}
	cfg := &config.Config{DBDir: dbdir}
	st := state.New()
	st.Declarations["load\x00load"] = state.DeclarationRecord{Type: "GAUGE"}

	_, err := w.Run(context.Background(), host, cfg, st)
	require.NoError(t, err)

	_, statErr := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(statErr), "old file should have been renamed away")

	data, err := os.ReadFile(newPath)
	require.NoError(t, err)
	assert.Equal(t, "old history data", string(data), "rename must preserve history, not recreate the file")

	assert.Empty(t, engine.Created, "an existing (renamed) file must not be recreated")
	require.Len(t, engine.Tuned, 1)
	assert.Equal(t, newPath, engine.Tuned[0].Path)
}

func TestRunSpoolfetchAdvancesCursorToAgentCursorLine(t *testing.T) {
	transport := scriptedTransport(
		"multigraph dirtyconfig spool",
		".",
		"load.value 0.77",
		"cpu.value 123456",
		"1300",
		".",
	)
	engine := testsupport.NewFakeEngine()
	w := newTestWorker(engine, transport)

	host := config.HostDescriptor{HostName: "db1"}
	cfg := &config.Config{DBDir: t.TempDir()}
	st := state.New()
	st.Spoolfetch = "1000"

	_, err := w.Run(context.Background(), host, cfg, st)
	require.NoError(t, err)

	assert.Equal(t, "1300", st.Spoolfetch, "cursor must advance to the agent's trailing cursor line, not a sample value")
	assert.Equal(t, "spoolfetch 1000\n", transport.Sent[1])

	require.Len(t, engine.Updated, 2)
}

func TestRunTransportFailureReturnsError(t *testing.T) {
	engine := testsupport.NewFakeEngine()
	w := worker.New(worker.Dependencies{
		Dial: func(ctx context.Context, address string, port int) (session.Transport, error) {
			return nil, assertError("connection refused")
		},
		Resolve:        func(name string) bool { return false },
		Store:          rrdstore.New(engine, false),
		SessionTimeout: time.Second,
	})

	_, err := w.Run(context.Background(), config.HostDescriptor{HostName: "db1"}, &config.Config{}, state.New())
	assert.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
