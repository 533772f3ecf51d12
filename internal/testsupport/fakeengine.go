// Package testsupport holds small hand-rolled fakes shared across
// package tests, in place of a mocking framework.
package testsupport

import (
	"sync"

	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/rrdstore"
	"github.com/opswatch/updateworker/timespec"
)

// FakeEngine records every call instead of touching a real RRD file.
// Creates, updates, and tunes can be made to fail on demand for
// exercising the store's per-operation error handling.
type FakeEngine struct {
	mu sync.Mutex

	Created []CreateCall
	Updated []UpdateCall
	Tuned   []TuneCall

	FailCreate bool
	FailUpdate bool
	FailTune   bool
}

type CreateCall struct {
	Path      string
	Start     int64
	Step      int64
	Heartbeat int64
	DSType    rrdpath.DSType
	Min, Max  string
	Archives  []timespec.Archive
}

type UpdateCall struct {
	Path    string
	Samples []rrdstore.Sample
}

type TuneCall struct {
	Path     string
	DSType   rrdpath.DSType
	Min, Max string
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (f *FakeEngine) Create(path string, start, step, heartbeat int64, dsType rrdpath.DSType, min, max string, archives []timespec.Archive) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate {
		return errFake("create")
	}
	f.Created = append(f.Created, CreateCall{path, start, step, heartbeat, dsType, min, max, archives})
	return nil
}

func (f *FakeEngine) Update(path string, samples []rrdstore.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailUpdate {
		return errFake("update")
	}
	cp := make([]rrdstore.Sample, len(samples))
	copy(cp, samples)
	f.Updated = append(f.Updated, UpdateCall{path, cp})
	return nil
}

func (f *FakeEngine) Tune(path string, dsType rrdpath.DSType, min, max string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailTune {
		return errFake("tune")
	}
	f.Tuned = append(f.Tuned, TuneCall{path, dsType, min, max})
	return nil
}

type fakeError string

func (e fakeError) Error() string { return string(e) + " failed (fake)" }

func errFake(op string) error { return fakeError(op) }
