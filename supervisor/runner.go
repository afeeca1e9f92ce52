package supervisor

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/xcjail/xc/container"
	"github.com/xcjail/xc/ipc/packet"
	"github.com/xcjail/xc/models"
)

// namedProcessEntry is the runner's bookkeeping for one named process:
// init.N, deinit.N, main, or an ad-hoc id minted for an "exec" request.
type namedProcessEntry struct {
	stat      models.ProcessStat
	directPID int
	notify    ExitNotify
}

// Runner drives one container end to end: it owns the kqueue engine, the
// process-attribution registry, the init/main/deinit serial queues, the
// control-stream decoders, and the manifest publisher, all from a single
// goroutine so none of that state needs a lock.
type Runner struct {
	eng engine
	reg *registry

	// pidToID maps a named process's direct spawned pid (registry's
	// "ancestor") to its logical id. Only ancestors are keyed here;
	// registry.ancestor resolves any descendant pid to one of these.
	pidToID   map[int]string
	processes map[string]*namedProcessEntry

	controlStreams map[int]*packet.Stream
	newStreams     chan *packet.Stream
	wakeR, wakeW   int

	container *container.RunningContainer
	spawner   *spawner
	pub       *publisher
	log       *logrus.Entry

	autoStart bool

	started     *int64
	destroyedAt *int64
	phase       models.Phase
	mainExited  bool

	// lastDeinitID holds the id of the final deinit element once its
	// direct child has exited and the grace timer has been armed; deinit
	// only actually finishes once that id's tree has exited or the timer
	// fires, whichever comes first.
	lastDeinitID *string

	spawnQueue []spawnItem
	inits      *serialExec
	deinits    *serialExec
}

// Handle is what Run hands back to the caller: the kqueue fd (for a
// caller that wants to select/poll on it too), the manifest watch
// channel, and a way to request termination.
type Handle struct {
	KQFD     int
	Manifest ManifestChan
	eng      engine
}

// Kill posts the external-kill event; safe to call from any goroutine.
func (h *Handle) Kill() error { return h.eng.postKill() }

// Run constructs and launches a Runner for rc, returning immediately. The
// event loop and (if controlSocketPath is non-empty) the control-socket
// accept loop both run in their own goroutines.
func Run(rc *container.RunningContainer, controlSocketPath string, autoStart bool) (*Handle, error) {
	eng, err := newEngine()
	if err != nil {
		return nil, err
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		eng.close()
		return nil, fmt.Errorf("supervisor: wake pipe: %w", err)
	}
	wakeR, wakeW := fds[0], fds[1]
	if err := eng.watchRead(wakeR); err != nil {
		eng.close()
		return nil, fmt.Errorf("supervisor: watch wake pipe: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{"container_id": rc.ID, "jid": rc.JID})
	pub := newPublisher(log)

	r := &Runner{
		eng:            eng,
		reg:            newRegistry(),
		pidToID:        make(map[int]string),
		processes:      make(map[string]*namedProcessEntry),
		controlStreams: make(map[int]*packet.Stream),
		newStreams:     make(chan *packet.Stream, 16),
		wakeR:          wakeR,
		wakeW:          wakeW,
		container:      rc,
		spawner:        newSpawner(rc.ID, rc.JID, rc.Linux, log),
		pub:            pub,
		log:            log,
		autoStart:      autoStart,
		phase:          models.PhaseCreated,
		inits:          newSerialExec("init", rc.InitProto, false),
		deinits:        newSerialExec("deinit", rc.DeinitProto, false),
	}

	if controlSocketPath != "" {
		go r.acceptLoop(controlSocketPath)
	}
	go r.run()

	return &Handle{KQFD: eng.fileDescriptor(), Manifest: pub.ch, eng: eng}, nil
}

// run is the single-threaded event loop: drain pending spawns, publish
// the manifest, block for events, dispatch, repeat, until cleanup runs.
func (r *Runner) run() {
	defer r.eng.close()
	defer unix.Close(r.wakeR)
	defer unix.Close(r.wakeW)

	if r.autoStart {
		r.start()
	}

	for {
		r.drainSpawnQueue()
		r.pub.publish(r.manifest())

		if r.destroyedAt != nil {
			return
		}

		events, err := r.eng.wait()
		if err != nil {
			r.log.WithError(err).Error("kqueue wait failed, stopping runner")
			return
		}
		for _, ev := range events {
			r.dispatch(ev)
		}
	}
}

func (r *Runner) dispatch(ev event) {
	switch ev.Filter {
	case filterProc:
		r.handlePidEvent(ev)
	case filterTimer:
		r.log.Warn("deinit grace period expired, forcing termination")
		r.finishDeinit()
	case filterUser:
		r.handleKill()
	case filterRead:
		r.handleReadable(ev)
	}
}

// drainSpawnQueue launches every item queued since the last iteration.
// Queued items (init/main/deinit steps, run_main) carry no external
// notify; only a direct "exec" request does, and that path calls
// spawnProcess itself rather than going through the queue.
func (r *Runner) drainSpawnQueue() {
	queue := r.spawnQueue
	r.spawnQueue = nil
	for _, item := range queue {
		if _, err := r.spawnProcess(item.id, item.spec, nil); err != nil {
			r.log.WithError(err).WithField("id", item.id).Warn("failed to spawn queued process")
			continue
		}
		if item.id == "main" {
			r.container.MainStartedNotify.Fire()
		}
	}
}

// spawnProcess launches spec under id, registers it with the process
// registry and exit watch, and records its initial stat. On failure, a
// caller-supplied notify is fired so a waiter blocked on it unblocks
// instead of hanging forever.
func (r *Runner) spawnProcess(id string, spec models.ExecSpec, notify ExitNotify) (models.SpawnInfo, error) {
	info, err := r.spawner.spawn(r.eng, r.container.Root, id, spec)
	if err != nil {
		if notify != nil {
			if nerr := notify.Fire(); nerr != nil {
				r.log.WithError(nerr).WithField("id", id).Warn("notify fire failed")
			}
		}
		return models.SpawnInfo{}, err
	}
	r.reg.seed(info.PID)
	r.pidToID[info.PID] = id

	stat := models.NewProcessStat(spec)
	stat.SetStarted(info)
	r.processes[id] = &namedProcessEntry{stat: stat, directPID: info.PID, notify: notify}
	return info, nil
}

// start transitions the container out of "created", exactly once.
func (r *Runner) start() {
	if r.started != nil {
		r.log.Debug("start: already started, ignoring")
		return
	}
	now := models.Epoch()
	r.started = &now
	r.beginInit()
}

func (r *Runner) beginInit() {
	r.phase = models.PhaseInit
	if !r.container.InitNoRun && !r.inits.isEmpty() {
		r.inits.activate()
		if id, spec, ok := r.inits.popFront(); ok {
			r.spawnQueue = append(r.spawnQueue, spawnItem{id: id, spec: spec})
		}
		return
	}
	r.beginMain()
}

func (r *Runner) beginMain() {
	r.phase = models.PhaseRunning
	if !r.container.MainNoRun && r.container.MainProto != nil {
		r.spawnQueue = append(r.spawnQueue, spawnItem{id: "main", spec: *r.container.MainProto})
	}
}

// beginDeinit starts the deinit phase. A no-op once already deiniting or
// terminated, so an explicit kill arriving mid-deinit is a safe no-op.
func (r *Runner) beginDeinit() {
	if r.phase == models.PhaseDeiniting || r.destroyedAt != nil {
		return
	}
	r.phase = models.PhaseDeiniting
	if !r.container.DeinitNoRun && !r.deinits.isEmpty() {
		r.deinits.activate()
		if id, spec, ok := r.deinits.popFront(); ok {
			r.spawnQueue = append(r.spawnQueue, spawnItem{id: id, spec: spec})
		}
		return
	}
	r.finishDeinit()
}

func (r *Runner) finishDeinit() {
	r.cleanup()
}

// cleanup marks the container terminated and fires its destroyed
// notification. Idempotent.
func (r *Runner) cleanup() {
	if r.destroyedAt != nil {
		return
	}
	now := models.Epoch()
	r.destroyedAt = &now
	r.phase = models.PhaseTerminated
	r.container.DestroyedNotify.Fire()
}

func (r *Runner) handleKill() {
	if r.destroyedAt != nil {
		return
	}
	if r.phase == models.PhaseDeiniting {
		return
	}
	r.beginDeinit()
}

// handlePidEvent dispatches one EVFILT_PROC event. A NOTE_CHILD delivery
// is handled on its own and returns; NOTE_EXIT is only looked at when
// NOTE_CHILD is absent. The two NOTE_EXIT branches below
// (ancestor-direct-exit and tree-now-empty) can both fire for the same
// delivery — a leaf process with no children satisfies both at once.
func (r *Runner) handlePidEvent(ev event) {
	pid := ev.Ident

	if ev.Fflags&noteChild != 0 {
		parent := int(ev.Data)
		if anc := r.reg.ancestor(parent); r.reg.rpmap[anc] == nil {
			r.log.WithField("pid", pid).WithField("ancestor", anc).Error("NOTE_CHILD for a parent outside every tracked tree, skipping")
			return
		}
		r.reg.onChild(parent, pid)
		if err := r.eng.watchExit(pid); err != nil {
			r.log.WithError(err).WithField("pid", pid).Warn("failed to watch forked descendant")
		}
		return
	}
	if ev.Fflags&noteExit == 0 {
		return
	}

	anc, treeEmpty := r.reg.exit(pid)
	id, named := r.pidToID[anc]

	if pid == anc && named {
		if np, ok := r.processes[id]; ok {
			np.stat.SetExited(int(ev.Data))
		}
		if err := r.eng.reap(pid); err != nil {
			r.log.WithError(err).WithField("pid", pid).Warn("reap failed")
		}
		r.tryDrainSerial(id)
	}

	if treeEmpty && named {
		if np, ok := r.processes[id]; ok {
			np.stat.SetTreeExited()
			if np.notify != nil {
				if err := np.notify.Fire(); err != nil {
					r.log.WithError(err).WithField("id", id).Warn("notify fire failed")
				}
			}
		}
		if id == "main" {
			r.mainExited = true
			if !r.container.Persist {
				r.beginDeinit()
			}
		}
		if r.lastDeinitID != nil && *r.lastDeinitID == id {
			r.lastDeinitID = nil
			r.finishDeinit()
		}
	}
}

// tryDrainSerial is called with the id of a named process whose direct
// child just exited. Ad-hoc "exec" ids never match either queue's
// lastSpawn, so they fall through as a no-op, matching the rule that
// ad-hoc processes never drive init/deinit forward.
//
// When deinit's last element's direct child exits, tryDrain reports the
// phase drained, but deinit does not finish yet: the grace timer is
// armed and finishDeinit waits for that element's tree to exit (or for
// the timer to fire), not for its direct child alone.
func (r *Runner) tryDrainSerial(exitedID string) {
	var out []spawnItem
	if r.inits.tryDrain(exitedID, &out) {
		r.beginMain()
		return
	}
	if len(out) > 0 {
		r.spawnQueue = append(r.spawnQueue, out...)
		return
	}

	out = nil
	if r.deinits.tryDrain(exitedID, &out) {
		id := exitedID
		r.lastDeinitID = &id
		if err := r.eng.armDeinitTimer(15); err != nil {
			r.log.WithError(err).Warn("failed to arm deinit grace timer")
		}
		return
	}
	r.spawnQueue = append(r.spawnQueue, out...)
}

func (r *Runner) manifest() models.ContainerManifest {
	m := r.container.Manifest()
	m.Started = r.started
	m.Destroyed = r.destroyedAt
	m.Phase = r.phase
	for id, np := range r.processes {
		m.Processes[id] = np.stat
	}
	return m
}

// acceptLoop accepts control-socket connections and hands each new
// packet.Stream to the event loop over newStreams, waking it via the
// self-pipe so the handoff needs no lock on the runner's own state.
func (r *Runner) acceptLoop(path string) {
	os.Remove(path)
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		r.log.WithError(err).Error("cannot create control socket")
		return
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		r.log.WithError(err).Error("cannot bind control socket")
		unix.Close(fd)
		return
	}
	if err := unix.Listen(fd, 16); err != nil {
		r.log.WithError(err).Error("cannot listen on control socket")
		unix.Close(fd)
		return
	}
	defer unix.Close(fd)
	defer os.Remove(path)

	for {
		connFd, _, err := unix.Accept(fd)
		if err != nil {
			return
		}
		r.newStreams <- packet.NewStream(connFd)
		unix.Write(r.wakeW, []byte{1})
	}
}

func (r *Runner) handleReadable(ev event) {
	if ev.Ident == r.wakeR {
		r.drainWake(int(ev.Data))
		return
	}
	stream, ok := r.controlStreams[ev.Ident]
	if !ok {
		return
	}
	n := int(ev.Data)
	if n <= 0 {
		n = 4096
	}
	readiness, req, err := stream.TryGetRequest(n)
	if err != nil {
		stream.Close()
		delete(r.controlStreams, ev.Ident)
		return
	}
	if readiness == packet.Ready {
		r.handleControlStreamCmd(stream.FD(), req.Method, req.Data)
	}
}

func (r *Runner) drainWake(n int) {
	if n <= 0 {
		n = 1
	}
	buf := make([]byte, n)
	unix.Read(r.wakeR, buf)

	for {
		select {
		case s := <-r.newStreams:
			if err := r.eng.watchRead(s.FD()); err != nil {
				r.log.WithError(err).Warn("failed to watch control stream")
				s.Close()
				continue
			}
			r.controlStreams[s.FD()] = s
		default:
			return
		}
	}
}
