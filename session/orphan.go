package session

import (
	"context"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/opswatch/updateworker/logger"
)

// helperFingerprint pins a forked helper's identity to both PID and
// start time, the same safeguard the teacher's system-metrics poller
// uses gopsutil for: a bare PID can be recycled by the OS between the
// fork and the reap, and signaling the wrong process is unrecoverable.
type helperFingerprint struct {
	pid       int32
	createdAt int64
}

func fingerprintHelper(pid int) (helperFingerprint, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return helperFingerprint{}, err
	}
	createdAt, err := p.CreateTime()
	if err != nil {
		return helperFingerprint{}, err
	}
	return helperFingerprint{pid: int32(pid), createdAt: createdAt}, nil
}

// reapOrphan signals the helper process if, and only if, the process
// currently occupying its PID is still the same one that was forked
// (matched by start time). A PID reused by an unrelated process is
// left untouched.
func reapOrphan(ctx context.Context, fp helperFingerprint) error {
	p, err := process.NewProcess(fp.pid)
	if err != nil {
		// Already gone: nothing to reap.
		return nil
	}
	createdAt, err := p.CreateTime()
	if err != nil {
		return nil
	}
	if createdAt != fp.createdAt {
		logger.Warnw("helper pid reused by unrelated process, skipping reap",
			"pid", fp.pid)
		return nil
	}

	if err := p.SendSignal(syscall.SIGTERM); err != nil {
		return err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		running, err := p.IsRunning()
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return p.Kill()
}
