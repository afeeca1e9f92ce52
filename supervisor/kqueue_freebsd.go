//go:build freebsd

package supervisor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// killIdent is the EVFILT_USER identifier used for the external kill
// event, matching the original implementation's fixed id of 2.
const killIdent = 2

// deinitTimerIdent is the EVFILT_TIMER identifier used for the 15-second
// deinit grace deadline.
const deinitTimerIdent = 1486

// kqueueEngine is the real kqueue(2)-backed implementation of the
// supervisor's kernel event queue.
type kqueueEngine struct {
	fd int
}

func newKqueueEngine() (*kqueueEngine, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("supervisor: kqueue: %w", err)
	}
	e := &kqueueEngine{fd: fd}
	reg := unix.Kevent_t{
		Ident:  killIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ONESHOT | unix.EV_ADD | unix.EV_ENABLE,
		Fflags: unix.NOTE_FFNOP,
	}
	if _, err := unix.Kevent(fd, []unix.Kevent_t{reg}, nil, nil); err != nil {
		return nil, fmt.Errorf("supervisor: register kill event: %w", err)
	}
	return e, nil
}

func (e *kqueueEngine) fileDescriptor() int { return e.fd }

// watchExit registers both NOTE_EXIT (deliver pid's own exit) and
// NOTE_TRACK (have the kernel auto-register a watch on every process pid
// forks, surfacing it as a NOTE_CHILD event carrying the parent's pid in
// Data) on the same kevent, so the kernel tracks the whole tree rooted at
// pid from the moment each descendant is forked.
func (e *kqueueEngine) watchExit(pid int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(pid),
		Filter: unix.EVFILT_PROC,
		Flags:  unix.EV_ADD,
		Fflags: unix.NOTE_EXIT | unix.NOTE_TRACK,
	}
	_, err := unix.Kevent(e.fd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (e *kqueueEngine) watchRead(fd int) error {
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}
	_, err := unix.Kevent(e.fd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (e *kqueueEngine) armDeinitTimer(seconds int) error {
	// EVFILT_TIMER's Data is in milliseconds when no unit flag is given.
	ev := unix.Kevent_t{
		Ident:  deinitTimerIdent,
		Filter: unix.EVFILT_TIMER,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		Data:   int64(seconds) * 1000,
	}
	_, err := unix.Kevent(e.fd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// postKill triggers the EVFILT_USER kill event; safe to call from any
// goroutine, including one outside the supervisor's own thread.
func (e *kqueueEngine) postKill() error {
	ev := unix.Kevent_t{
		Ident:  killIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ONESHOT,
		Fflags: unix.NOTE_TRIGGER | unix.NOTE_FFNOP,
	}
	_, err := unix.Kevent(e.fd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

// wait blocks until at least one event is ready, returning up to 64 at
// once, with no timeout.
func (e *kqueueEngine) wait() ([]event, error) {
	raw := make([]unix.Kevent_t, 64)
	n, err := unix.Kevent(e.fd, nil, raw, nil)
	if err != nil {
		return nil, err
	}
	out := make([]event, n)
	for i := 0; i < n; i++ {
		out[i] = event{
			Ident:  int(raw[i].Ident),
			Filter: translateFilter(raw[i].Filter),
			Fflags: raw[i].Fflags,
			Data:   int64(raw[i].Data),
		}
	}
	return out, nil
}

// translateFilter maps a raw unix.EVFILT_* value to the package's own
// platform-neutral filterKind. noteExit/noteChild are chosen to equal
// unix.NOTE_EXIT/unix.NOTE_CHILD numerically, so Fflags need no
// translation.
func translateFilter(f int16) filterKind {
	switch f {
	case unix.EVFILT_PROC:
		return filterProc
	case unix.EVFILT_TIMER:
		return filterTimer
	case unix.EVFILT_READ:
		return filterRead
	case unix.EVFILT_USER:
		return filterUser
	default:
		return filterOther
	}
}

// reap collects pid's zombie. NOTE_EXIT has already told the loop the
// process is dead; WNOHANG costs nothing extra since the wait is known
// to succeed immediately, but is kept anyway as a defensive bound against
// a pid that was somehow already reaped elsewhere.
func (e *kqueueEngine) reap(pid int) error {
	var ws unix.WaitStatus
	_, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil && err != unix.ECHILD {
		return fmt.Errorf("supervisor: reap pid %d: %w", pid, err)
	}
	return nil
}

func (e *kqueueEngine) close() error {
	return unix.Close(e.fd)
}

func newEngine() (engine, error) { return newKqueueEngine() }
