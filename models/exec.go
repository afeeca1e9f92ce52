package models

import (
	"encoding/json"
	"fmt"
)

// StdioKind selects how a spawned process's stdio is wired up. See
// each mode is described below.
type StdioKind int

const (
	// StdioTerminal allocates a pseudo-terminal, logs its output to a file
	// and exposes the master end on a per-process control socket.
	StdioTerminal StdioKind = iota
	// StdioFiles redirects stdout/stderr to caller-chosen (or absent)
	// regular files.
	StdioFiles
	// StdioInherit is StdioFiles with supervisor-chosen default log paths.
	StdioInherit
	// StdioForward attaches caller-supplied file descriptor numbers
	// directly, with no supervisor-managed files.
	StdioForward
)

func (k StdioKind) String() string {
	switch k {
	case StdioTerminal:
		return "terminal"
	case StdioFiles:
		return "files"
	case StdioInherit:
		return "inherit"
	case StdioForward:
		return "forward"
	default:
		return fmt.Sprintf("StdioKind(%d)", int(k))
	}
}

// FilesIO names the stdout/stderr destinations for StdioFiles. Either may
// be empty, meaning "discard".
type FilesIO struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// ForwardIO names the three caller-supplied file descriptors for
// StdioForward.
type ForwardIO struct {
	Stdin  int `json:"stdin"`
	Stdout int `json:"stdout"`
	Stderr int `json:"stderr"`
}

// StdioMode is a tagged union. It round-trips
// through JSON as:
//
//	"terminal"
//	{"files": {"stdout": "...", "stderr": "..."}}
//	"inherit"
//	{"forward": {"stdin": 0, "stdout": 1, "stderr": 2}}
type StdioMode struct {
	Kind    StdioKind
	Files   FilesIO
	Forward ForwardIO
}

// Terminal builds a StdioMode in Terminal mode.
func Terminal() StdioMode { return StdioMode{Kind: StdioTerminal} }

// Inherit builds a StdioMode in Inherit mode.
func Inherit() StdioMode { return StdioMode{Kind: StdioInherit} }

// Files builds a StdioMode in Files mode with the given destinations.
func Files(stdout, stderr string) StdioMode {
	return StdioMode{Kind: StdioFiles, Files: FilesIO{Stdout: stdout, Stderr: stderr}}
}

// Forward builds a StdioMode in Forward mode with the given descriptors.
func Forward(stdin, stdout, stderr int) StdioMode {
	return StdioMode{Kind: StdioForward, Forward: ForwardIO{Stdin: stdin, Stdout: stdout, Stderr: stderr}}
}

func (m StdioMode) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case StdioTerminal:
		return json.Marshal("terminal")
	case StdioInherit:
		return json.Marshal("inherit")
	case StdioFiles:
		return json.Marshal(struct {
			Files FilesIO `json:"files"`
		}{m.Files})
	case StdioForward:
		return json.Marshal(struct {
			Forward ForwardIO `json:"forward"`
		}{m.Forward})
	default:
		return nil, fmt.Errorf("models: unknown StdioKind %d", m.Kind)
	}
}

func (m *StdioMode) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case "terminal":
			*m = Terminal()
			return nil
		case "inherit":
			*m = Inherit()
			return nil
		default:
			return fmt.Errorf("models: unknown stdio mode %q", tag)
		}
	}

	var asFiles struct {
		Files *FilesIO `json:"files"`
	}
	if err := json.Unmarshal(data, &asFiles); err == nil && asFiles.Files != nil {
		*m = Files(asFiles.Files.Stdout, asFiles.Files.Stderr)
		return nil
	}

	var asForward struct {
		Forward *ForwardIO `json:"forward"`
	}
	if err := json.Unmarshal(data, &asForward); err == nil && asForward.Forward != nil {
		*m = Forward(asForward.Forward.Stdin, asForward.Forward.Stdout, asForward.Forward.Stderr)
		return nil
	}

	return fmt.Errorf("models: cannot decode stdio mode from %s", data)
}

// ExecSpec describes one process to run.
type ExecSpec struct {
	Arg0    string            `json:"arg0"`
	Args    []string          `json:"args"`
	Envs    map[string]string `json:"envs"`
	WorkDir string            `json:"work_dir,omitempty"`
	Output  StdioMode         `json:"output_mode"`
	// Notify is an event-notification file descriptor the caller passed
	// via socket ancillary data; 0 means "no notify requested". It is
	// populated by the control-stream decoder, not by callers building an
	// ExecSpec programmatically in-process.
	Notify int `json:"notify,omitempty"`
}

// Clone returns a deep copy of the spec so that callers who stash it (a
// ProcessStat snapshot, a serial-queue entry) are immune to later
// mutation of the caller's copy — the Go analogue of the Rust
// implementation's pervasive Jexec::clone().
func (e ExecSpec) Clone() ExecSpec {
	out := e
	if e.Args != nil {
		out.Args = append([]string(nil), e.Args...)
	}
	if e.Envs != nil {
		out.Envs = make(map[string]string, len(e.Envs))
		for k, v := range e.Envs {
			out.Envs[k] = v
		}
	}
	return out
}

// DefaultSearchPath is used when an ExecSpec's environment has no PATH
// entry.
const DefaultSearchPath = "/bin:/usr/bin:/sbin:/usr/sbin"

// SearchPath returns envs["PATH"], or DefaultSearchPath if absent.
func (e ExecSpec) SearchPath() string {
	if p, ok := e.Envs["PATH"]; ok && p != "" {
		return p
	}
	return DefaultSearchPath
}
