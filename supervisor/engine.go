package supervisor

// filterKind is the supervisor's own enum for kqueue's EVFILT_* values,
// kept independent of golang.org/x/sys/unix so the non-freebsd build and
// test fakes don't need that (freebsd-only) package.
type filterKind int16

const (
	filterProc filterKind = iota
	filterTimer
	filterRead
	filterUser
	filterOther
)

// NOTE_EXIT/NOTE_CHILD as seen on an EVFILT_PROC event's Fflags.
const (
	noteExit  uint32 = 1 << 31
	noteChild uint32 = 1 << 2
)

// event is the engine's platform-neutral view of one returned kevent.
type event struct {
	Ident  int
	Filter filterKind
	Fflags uint32
	// Data carries exit status for EVFILT_PROC/NOTE_EXIT, the parent pid
	// for EVFILT_PROC/NOTE_CHILD, and the readable byte count for
	// EVFILT_READ.
	Data int64
}

// engine is the kernel-event-queue abstraction the event loop drives.
// The real implementation is kqueue(2) on FreeBSD (kqueue_freebsd.go); a
// fake implementation backs the scenario tests described for the
// lifecycle state machine.
type engine interface {
	fileDescriptor() int
	watchExit(pid int) error
	watchRead(fd int) error
	armDeinitTimer(seconds int) error
	postKill() error
	wait() ([]event, error)
	// reap collects the zombie left by pid's direct-child exit. The
	// kqueue NOTE_EXIT delivery tells the loop a pid exited without the
	// kernel reaping it, since the supervisor never calls exec.Cmd.Wait.
	reap(pid int) error
	close() error
}
