package models

import "time"

// SpawnInfo is the observable result of a successful spawn.
type SpawnInfo struct {
	PID int `json:"pid"`
	// PtyPath is set only when the process was started in Terminal mode.
	PtyPath string `json:"pty_path,omitempty"`
	// LogPath/OutPath/ErrPath record where stdio was captured, when
	// applicable to the stdio mode that was used.
	LogPath string `json:"log_path,omitempty"`
	OutPath string `json:"out_path,omitempty"`
	ErrPath string `json:"err_path,omitempty"`
}

// ProcessStat is the small, monotonic state record published per named
// process. Once ExitCode or TreeExited is set it is never
// cleared.
type ProcessStat struct {
	Spec       ExecSpec   `json:"spec"`
	Spawn      *SpawnInfo `json:"spawn,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	TreeExited bool       `json:"tree_exited"`
}

// NewProcessStat returns the initial ProcessStat for a just-enqueued spec.
func NewProcessStat(spec ExecSpec) ProcessStat {
	return ProcessStat{Spec: spec.Clone()}
}

// SetStarted records a successful spawn. No-op once already set, matching
// the monotonic contract (spawning happens at most once per named
// process).
func (s *ProcessStat) SetStarted(info SpawnInfo) {
	if s.Spawn == nil {
		cp := info
		s.Spawn = &cp
	}
}

// SetExited records the direct child's exit code. Monotonic: once set, a
// later call is a no-op.
func (s *ProcessStat) SetExited(code int) {
	if s.ExitCode == nil {
		cp := code
		s.ExitCode = &cp
	}
}

// SetTreeExited marks the whole tree as gone. Monotonic.
func (s *ProcessStat) SetTreeExited() {
	s.TreeExited = true
}

// Phase is a container's lifecycle state.
type Phase string

const (
	PhaseCreated    Phase = "created"
	PhaseInit       Phase = "starting_init"
	PhaseRunning    Phase = "running_main"
	PhaseDeiniting  Phase = "deiniting"
	PhaseTerminated Phase = "terminated"
)

// ContainerManifest is the serializable snapshot published through the
// status watch channel.
type ContainerManifest struct {
	ID        string                 `json:"id"`
	JID       int                    `json:"jid"`
	Phase     Phase                  `json:"phase"`
	Started   *int64                 `json:"started,omitempty"`
	Destroyed *int64                 `json:"destroyed,omitempty"`
	Processes map[string]ProcessStat `json:"processes"`
}

// Clone returns a deep copy suitable for handing to a watch-channel
// subscriber that must not observe later mutation.
func (m ContainerManifest) Clone() ContainerManifest {
	out := m
	if m.Started != nil {
		v := *m.Started
		out.Started = &v
	}
	if m.Destroyed != nil {
		v := *m.Destroyed
		out.Destroyed = &v
	}
	out.Processes = make(map[string]ProcessStat, len(m.Processes))
	for k, v := range m.Processes {
		out.Processes[k] = v
	}
	return out
}

// Epoch returns the current time as Unix seconds, the unit used for
// Started/Destroyed timestamps.
func Epoch() int64 { return time.Now().Unix() }
