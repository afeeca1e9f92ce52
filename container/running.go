package container

import (
	"fmt"
	"sync"

	"github.com/gofrs/flock"
	"github.com/mohae/deepcopy"
	"golang.org/x/sys/unix"

	"github.com/xcjail/xc/models"
)

// ExitNotify is a cross-process notification primitive: Fire is called
// from the supervisor's event loop after a process's whole tree has
// exited, or when the process fails to spawn.
type ExitNotify interface {
	Fire() error
}

// FDNotify fires an ExitNotify by writing a single byte to a file
// descriptor the caller is blocked reading from (the "self-pipe" idiom).
// This notify handle is carried as a plain fd over socket ancillary data
// (see the ExecSpec JSON schema); this is the simplest primitive that
// works identically whether the waiter lives in this process or
// another, and needs no FreeBSD-specific eventfd equivalent (FreeBSD has
// none — unlike Linux's eventfd(2)).
type FDNotify int

// Fire writes one byte to the fd. Errors are not fatal to the caller
// (spawn/exit handling continues regardless) but are surfaced so callers
// may log them.
func (n FDNotify) Fire() error {
	_, err := unix.Write(int(n), []byte{0})
	return err
}

// Broadcast is a close-once signal used for RunningContainer's two
// in-process notifications (main started, destroyed). It is the Go
// analogue of the tokio::sync::Notify fields on the original
// RunningContainer.
type Broadcast struct {
	once sync.Once
	ch   chan struct{}
}

// NewBroadcast returns a ready-to-use Broadcast.
func NewBroadcast() *Broadcast { return &Broadcast{ch: make(chan struct{})} }

// Fire wakes every current and future waiter. Idempotent.
func (b *Broadcast) Fire() { b.once.Do(func() { close(b.ch) }) }

// Done returns a channel that is closed once Fire has been called.
func (b *Broadcast) Done() <-chan struct{} { return b.ch }

// RunningContainer is the live, constructed form of a container the
// supervisor drives end to end.
type RunningContainer struct {
	Root string
	ID   string
	JID  int

	Linux       bool
	InitNoRun   bool
	MainNoRun   bool
	DeinitNoRun bool
	Persist     bool

	InitProto   []models.ExecSpec
	MainProto   *models.ExecSpec
	DeinitProto []models.ExecSpec

	MainStartedNotify *Broadcast
	DestroyedNotify   *Broadcast

	// lock is the flock on /var/run/xc.<id>.lock. It is created at
	// construction but not held; Lock/Unlock take and release it around
	// each write_hosts write, so that truncate-or-create write never runs
	// concurrently with another holder of this container id's lock file.
	lock *flock.Flock
}

// New builds a RunningContainer from a loaded Config, deep-copying the
// three ExecSpec lists so that later mutation of the Config the caller
// holds can never leak into the supervisor's own queues.
func New(cfg *Config) (*RunningContainer, error) {
	lockPath := fmt.Sprintf("/var/run/xc.%s.lock", cfg.ID)
	lock := flock.New(lockPath)

	rc := &RunningContainer{
		Root:              cfg.Root,
		ID:                cfg.ID,
		JID:               cfg.JID,
		Linux:             cfg.Linux,
		InitNoRun:         cfg.InitNoRun,
		MainNoRun:         cfg.MainNoRun,
		DeinitNoRun:       cfg.DeinitNoRun,
		Persist:           cfg.Persist,
		InitProto:         deepcopy.Copy(cfg.Init).([]models.ExecSpec),
		DeinitProto:       deepcopy.Copy(cfg.Deinit).([]models.ExecSpec),
		MainStartedNotify: NewBroadcast(),
		DestroyedNotify:   NewBroadcast(),
		lock:              lock,
	}
	if cfg.Main != nil {
		main := deepcopy.Copy(*cfg.Main).(models.ExecSpec)
		rc.MainProto = &main
	}
	return rc, nil
}

// Lock acquires the container's metadata/hosts lock, blocking until
// available.
func (c *RunningContainer) Lock() error { return c.lock.Lock() }

// Unlock releases the lock acquired by Lock.
func (c *RunningContainer) Unlock() error { return c.lock.Unlock() }

// Manifest returns the empty-processes manifest skeleton for this
// container; the supervisor fills in Processes/Phase/Started/Destroyed as
// it runs.
func (c *RunningContainer) Manifest() models.ContainerManifest {
	return models.ContainerManifest{
		ID:        c.ID,
		JID:       c.JID,
		Phase:     models.PhaseCreated,
		Processes: map[string]models.ProcessStat{},
	}
}
