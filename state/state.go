// Package state defines the small, serializable state blob owned by
// one worker and persisted by the dispatcher between runs: last-update
// stamps, the spoolfetch cursor, and the (previous, current) sample
// pairs used to avoid re-reading on-disk files.
package state

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opswatch/updateworker/errors"
	"github.com/opswatch/updateworker/freshness"
)

// SamplePair is the last two (when, value) pairs committed to a given
// RRD file, keyed by file path in State.Values.
type SamplePair struct {
	Current  *Point `yaml:"current,omitempty"`
	Previous *Point `yaml:"previous,omitempty"`
}

// Point is one committed sample.
type Point struct {
	When  int64  `yaml:"when"`
	Value string `yaml:"value"`
}

// State is the opaque value the dispatcher loads before a run and
// persists after. The worker treats it as private; nothing outside
// this package interprets its fields.
type State struct {
	LastUpdated map[string]freshness.Stamp `yaml:"last_updated"`
	Spoolfetch  string                     `yaml:"spoolfetch"`
	Values      map[string]SamplePair      `yaml:"values"`

	// OldConfigVersion and Declarations are the previous run's
	// software version string and its resolved data-source
	// declarations, keyed "service\x00field" — drift.Reconcile's inputs.
	OldConfigVersion string                       `yaml:"oldconfig_version"`
	Declarations     map[string]DeclarationRecord `yaml:"declarations"`
}

// DeclarationRecord mirrors drift.Declaration in a form yaml can
// marshal without importing the drift package's rrdpath dependency
// into state's serialization surface.
type DeclarationRecord struct {
	Type    string `yaml:"type"`
	Min     string `yaml:"min,omitempty"`
	Max     string `yaml:"max,omitempty"`
	OldName string `yaml:"oldname,omitempty"`
}

// New returns an empty state, as used for a node's first-ever run.
func New() *State {
	return &State{
		LastUpdated:  make(map[string]freshness.Stamp),
		Values:       make(map[string]SamplePair),
		Declarations: make(map[string]DeclarationRecord),
	}
}

// Load reads a worker's persisted state from path. A missing file is
// not an error — it is treated the same as a fresh node.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "reading state file %s", path), errors.StoreError)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.WithKind(errors.Wrapf(err, "parsing state file %s", path), errors.StoreError)
	}
	if s.LastUpdated == nil {
		s.LastUpdated = make(map[string]freshness.Stamp)
	}
	if s.Values == nil {
		s.Values = make(map[string]SamplePair)
	}
	if s.Declarations == nil {
		s.Declarations = make(map[string]DeclarationRecord)
	}
	return &s, nil
}

// Save serializes state to path as YAML, human-editable for debugging
// a stuck worker between runs.
func Save(path string, s *State) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.WithKind(errors.Wrap(err, "marshaling state"), errors.StoreError)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.WithKind(errors.Wrapf(err, "writing state file %s", path), errors.StoreError)
	}
	return nil
}

// RecordSample stores the committed (when, value) pair for an RRD
// file, shifting the old "current" into "previous".
func (s *State) RecordSample(rrdFile string, when int64, value string) {
	pair := s.Values[rrdFile]
	pair.Previous = pair.Current
	pair.Current = &Point{When: when, Value: value}
	s.Values[rrdFile] = pair
}

// InvalidateFile drops the cached sample pair for an RRD file that was
// removed out from under the store, so a later RecordSample starts
// clean instead of shifting a stale "current" into "previous".
func (s *State) InvalidateFile(rrdFile string) {
	delete(s.Values, rrdFile)
}
