package supervisor

import (
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/containerd/console"
	runc "github.com/containerd/go-runc"
	"github.com/sirupsen/logrus"

	"github.com/xcjail/xc/internal/elf"
	"github.com/xcjail/xc/internal/jail"
	"github.com/xcjail/xc/models"
)

// spawner builds and launches children attached to one jail. It carries
// no mutable state of its own beyond what's needed to name log/socket
// paths, so it is safe to share across named processes.
type spawner struct {
	containerID string
	jid         int
	linux       bool
	log         *logrus.Entry
}

func newSpawner(containerID string, jid int, linux bool, log *logrus.Entry) *spawner {
	return &spawner{containerID: containerID, jid: jid, linux: linux, log: log}
}

// spawn resolves, launches and registers one ExecSpec, assigning it the
// logical id. root is the container's filesystem root, used for path
// resolution.
func (s *spawner) spawn(eng engine, root, id string, spec models.ExecSpec) (models.SpawnInfo, error) {
	s.log.WithField("id", id).Debugf("spawn: %+v", spec)

	path, ok := resolve(root, spec.SearchPath(), spec.Arg0)
	if !ok {
		return models.SpawnInfo{}, ErrExecutableNotFound
	}

	if s.linux {
		if !elf.ExistsKmod("linux", "linux64") {
			return models.SpawnInfo{}, ErrMissingLinuxKmod
		}
		if err := elf.BrandIfUnsupported(path, elf.BrandLinux); err != nil {
			return models.SpawnInfo{}, fmt.Errorf("%w: %v", ErrBrandELFFailed, err)
		}
	}

	j := jail.Jail{JID: s.jid}
	cmd := j.Command(path, spec.Args, spec.WorkDir)
	cmd.Env = envSlice(spec.Envs)

	var (
		info models.SpawnInfo
		err  error
	)
	switch spec.Output.Kind {
	case models.StdioTerminal:
		socketPath := fmt.Sprintf("/var/run/xc.%s.%s", s.containerID, id)
		logPath := fmt.Sprintf("/var/log/xc.%s.%s.log", s.containerID, id)
		info, err = s.spawnPty(cmd, logPath, socketPath)
	case models.StdioFiles:
		info, err = s.spawnFiles(cmd, spec.Output.Files.Stdout, spec.Output.Files.Stderr)
	case models.StdioInherit:
		outPath := fmt.Sprintf("/var/log/xc.%s.%s.out.log", s.containerID, id)
		errPath := fmt.Sprintf("/var/log/xc.%s.%s.err.log", s.containerID, id)
		info, err = s.spawnPipeCopy(cmd, outPath, errPath)
	case models.StdioForward:
		info, err = s.spawnForward(cmd, spec.Output.Forward)
	default:
		return models.SpawnInfo{}, fmt.Errorf("supervisor: unknown stdio kind %v", spec.Output.Kind)
	}
	if err != nil {
		return models.SpawnInfo{}, err
	}

	if err := eng.watchExit(info.PID); err != nil {
		return models.SpawnInfo{}, fmt.Errorf("supervisor: registering exit watch for pid %d: %w", info.PID, err)
	}
	return info, nil
}

func envSlice(envs map[string]string) []string {
	out := make([]string, 0, len(envs))
	for k, v := range envs {
		out = append(out, k+"="+v)
	}
	return out
}

// spawnFiles redirects stdout/stderr to regular files, truncating or
// creating them; an empty path discards that stream to /dev/null.
func (s *spawner) spawnFiles(cmd *exec.Cmd, stdoutPath, stderrPath string) (models.SpawnInfo, error) {
	outFile, err := openOrDevNull(stdoutPath)
	if err != nil {
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	errFile, err := openOrDevNull(stderrPath)
	if err != nil {
		outFile.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	cmd.Stdout = outFile
	cmd.Stderr = errFile
	if err := cmd.Start(); err != nil {
		outFile.Close()
		errFile.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	outFile.Close()
	errFile.Close()
	return models.SpawnInfo{PID: cmd.Process.Pid, OutPath: stdoutPath, ErrPath: stderrPath}, nil
}

func openOrDevNull(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// spawnForward attaches caller-supplied file descriptor numbers
// directly as the child's stdio, with no supervisor-managed files.
func (s *spawner) spawnForward(cmd *exec.Cmd, fwd models.ForwardIO) (models.SpawnInfo, error) {
	cmd.Stdin = os.NewFile(uintptr(fwd.Stdin), "stdin")
	cmd.Stdout = os.NewFile(uintptr(fwd.Stdout), "stdout")
	cmd.Stderr = os.NewFile(uintptr(fwd.Stderr), "stderr")
	if err := cmd.Start(); err != nil {
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	return models.SpawnInfo{PID: cmd.Process.Pid}, nil
}

// spawnPipeCopy backs Inherit mode: the child's stdout/stderr are piped
// through go-runc's PipeIO rather than redirected to the destination
// files directly, so the supervisor can observe the stream as it's
// written (the log file is just today's only consumer of that copy).
func (s *spawner) spawnPipeCopy(cmd *exec.Cmd, outPath, errPath string) (models.SpawnInfo, error) {
	pio, err := runc.NewPipeIO(0, 0, func(o *runc.IOOption) {
		o.OpenStdout = true
		o.OpenStderr = true
	})
	if err != nil {
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	pio.Set(cmd)

	if err := cmd.Start(); err != nil {
		pio.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	pio.CloseAfterStart()

	outFile, err := openOrDevNull(outPath)
	if err == nil {
		go copyAndClose(outFile, pio.Stdout())
	}
	errFile, err := openOrDevNull(errPath)
	if err == nil {
		go copyAndClose(errFile, pio.Stderr())
	}
	return models.SpawnInfo{PID: cmd.Process.Pid, OutPath: outPath, ErrPath: errPath}, nil
}

func copyAndClose(dst *os.File, src io.ReadCloser) {
	defer dst.Close()
	defer src.Close()
	io.Copy(dst, src)
}

// spawnPty allocates a pseudo-terminal, attaches the slave end as the
// child's stdio, logs everything written to the master to logPath, and
// serves the master end over a unix socket at socketPath for external
// terminal clients (see DESIGN.md for why this inverts go-runc's
// console-socket direction).
func (s *spawner) spawnPty(cmd *exec.Cmd, logPath, socketPath string) (models.SpawnInfo, error) {
	master, slavePath, err := console.NewPty()
	if err != nil {
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	slave, err := os.OpenFile(slavePath, os.O_RDWR, 0)
	if err != nil {
		master.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}

	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true

	logFile, err := openOrDevNull(logPath)
	if err != nil {
		slave.Close()
		master.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		slave.Close()
		master.Close()
		return models.SpawnInfo{}, wrapSpawnIO(err)
	}
	slave.Close()

	go copyAndClose(logFile, io.NopCloser(master))
	go s.servePtyMaster(socketPath, master)

	return models.SpawnInfo{PID: cmd.Process.Pid, PtyPath: socketPath, LogPath: logPath}, nil
}

// servePtyMaster listens on socketPath and, for each accepted
// connection, hands the pty master's file descriptor over via
// SCM_RIGHTS ancillary data, then closes the connection. It runs until
// the listener errors (typically because the socket file was removed
// during cleanup).
func (s *spawner) servePtyMaster(socketPath string, master console.Console) {
	os.Remove(socketPath)
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		s.log.WithError(err).Warn("cannot listen on pty socket")
		return
	}
	defer ln.Close()
	defer os.Remove(socketPath)

	for {
		conn, err := ln.AcceptUnix()
		if err != nil {
			return
		}
		rights := syscall.UnixRights(int(master.Fd()))
		if _, _, err := conn.WriteMsgUnix(nil, rights, nil); err != nil {
			s.log.WithError(err).Warn("cannot send pty master fd")
		}
		conn.Close()
	}
}
