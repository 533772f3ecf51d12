// Package drift compares a data source's previous and current
// declarations and decides whether the existing on-disk time series
// should be renamed, tuned, or left for an operator to reconcile by
// hand.
package drift

import (
	"os"

	"github.com/opswatch/updateworker/rrdpath"
)

// Declaration is the subset of a field's attributes that matter for
// drift detection: the three autotune fields plus the rename hint.
type Declaration struct {
	Type    rrdpath.DSType
	Min     string
	Max     string
	OldName string
}

// autotuneEqual treats "both undefined" as equal and "one defined, the
// other not" as unequal; other declared fields may differ freely with
// no on-disk action.
func autotuneEqual(a, b Declaration) bool {
	return a.Type == b.Type && a.Min == b.Min && a.Max == b.Max
}

// Action is the reconciliation decision for one (service, field).
type Action int

const (
	NoAction Action = iota
	Tune
	Rename
	Warn
)

// Result describes what, if anything, must happen on disk.
type Result struct {
	Action  Action
	OldPath string
	NewPath string
	Message string
}

// FileExists abstracts the filesystem check so tests can simulate file
// presence without touching disk.
type FileExists func(path string) bool

// OSFileExists is the production FileExists backed by os.Stat.
func OSFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Lookup resolves the previous declaration for (service, field),
// honoring the oldname rename hint: if newDecl.OldName is set and a
// declaration is found under that name, the hit counts as a rename
// candidate and is returned as found.
func Lookup(previous map[string]Declaration, service, field string, newDecl Declaration) (Declaration, bool) {
	if newDecl.OldName != "" {
		if d, ok := previous[service+"\x00"+newDecl.OldName]; ok {
			return d, true
		}
	}
	d, ok := previous[service+"\x00"+field]
	return d, ok
}

// Reconcile implements §4.7: look up the old declaration, and if the
// autotune fields differ, decide tune/rename/warn/none based on which
// of the old and new on-disk files exist. If the autotune fields do
// not differ but the persisted software version differs from the
// current one, a precautionary tune is issued.
func Reconcile(
	previous map[string]Declaration,
	service, field string,
	newDecl Declaration,
	oldPath, newPath string,
	persistedVersion, currentVersion string,
	exists FileExists,
) Result {
	oldDecl, found := Lookup(previous, service, field, newDecl)
	if !found {
		if persistedVersion != currentVersion {
			return Result{Action: Tune, NewPath: newPath, Message: "precautionary tune: software version changed"}
		}
		return Result{Action: NoAction}
	}

	if !autotuneEqual(oldDecl, newDecl) {
		switch {
		case oldPath == newPath:
			return Result{Action: Tune, NewPath: newPath, Message: "autotune fields changed"}
		case exists(oldPath) && !exists(newPath):
			return Result{Action: Rename, OldPath: oldPath, NewPath: newPath, Message: "renaming to match new declaration"}
		case exists(oldPath) && exists(newPath):
			return Result{Action: Warn, OldPath: oldPath, NewPath: newPath, Message: "manual merge required: both old and new files exist"}
		default:
			return Result{Action: NoAction}
		}
	}

	if persistedVersion != currentVersion {
		return Result{Action: Tune, NewPath: newPath, Message: "precautionary tune: software version changed"}
	}
	return Result{Action: NoAction}
}
