package supervisor

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/xcjail/xc/container"
	"github.com/xcjail/xc/ipc/proto"
	"github.com/xcjail/xc/models"
)

// eio is the POSIX errno value the control protocol uses for a failed
// spawn.
const eio = 5

// einval is used for a rejected write_hosts request (a supplemented
// validation not present in the original's silent-swallow behavior, see
// SPEC_FULL.md).
const einval = 22

func genID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// handleControlStreamCmd dispatches one decoded request. Unknown methods
// are silently ignored: the frame has already been consumed by the
// decoder, so the stream stays in sync, but neither a response nor an
// error is produced.
func (r *Runner) handleControlStreamCmd(fd int, method string, data json.RawMessage) {
	switch method {
	case "exec":
		r.handleExec(fd, data)
	case "run_main":
		r.handleRunMain(fd)
	case "start":
		r.start()
		_ = proto.WriteResponse(fd, 0, nil)
	case "write_hosts":
		r.handleWriteHosts(fd, data)
	default:
		r.log.WithField("method", method).Debug("unknown control method, ignoring")
	}
}

func (r *Runner) handleExec(fd int, data json.RawMessage) {
	var spec models.ExecSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		_ = proto.WriteResponse(fd, eio, &proto.ErrorBody{Message: "malformed exec spec"})
		return
	}

	var notify ExitNotify
	if spec.Notify != 0 {
		notify = container.FDNotify(spec.Notify)
	}

	info, err := r.spawnProcess(genID(), spec, notify)
	if err != nil {
		r.log.WithError(err).Warn("failed to spawn")
		_ = proto.WriteResponse(fd, eio, &proto.ErrorBody{Message: "failed to spawn"})
		return
	}
	_ = proto.WriteResponse(fd, 0, &info)
}

// handleRunMain enqueues the container's main process directly,
// bypassing beginMain's MainNoRun guard: this method exists precisely
// to launch main for a container that started with MainNoRun set, so it
// must enqueue unconditionally whenever a main proto is configured. It
// replies with status 0 and an empty body whether or not a main proto
// was enqueued.
func (r *Runner) handleRunMain(fd int) {
	if r.container.MainProto != nil {
		r.spawnQueue = append(r.spawnQueue, spawnItem{id: "main", spec: *r.container.MainProto})
	}
	_ = proto.WriteResponse(fd, 0, nil)
}

func (r *Runner) handleWriteHosts(fd int, data json.RawMessage) {
	var entries []models.HostEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		_ = proto.WriteResponse(fd, eio, &proto.ErrorBody{Message: "malformed host entries"})
		return
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			_ = proto.WriteResponse(fd, einval, &proto.ErrorBody{Message: err.Error()})
			return
		}
	}

	if err := r.writeHostsLocked(entries); err != nil {
		r.log.WithError(err).Warn("failed to write hosts file")
	}
	_ = proto.WriteResponse(fd, 0, nil)
}
