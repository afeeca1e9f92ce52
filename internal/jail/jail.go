// Package jail wraps the host's jail(8)/jexec(8) tooling as the single
// external collaborator the spawn engine needs to attach a child process
// to a running jail. Jail creation/teardown is out of scope here — this
// package only knows how to run a command inside an already-running
// jail by id.
package jail

import (
	"fmt"
	"os/exec"
)

// jexecPath is the FreeBSD utility used to attach a new process to a
// running jail before exec'ing into it.
const jexecPath = "/usr/sbin/jexec"

// Jail identifies an already-running jail by its numeric id.
type Jail struct {
	JID int
}

// Command builds an *exec.Cmd that, when started, attaches to the jail
// and execs path with args inside it. When dir is non-empty the process
// changes into dir (interpreted relative to the jail's own root) before
// exec'ing the target.
func (j Jail) Command(path string, args []string, dir string) *exec.Cmd {
	jidArg := fmt.Sprintf("%d", j.JID)
	if dir == "" {
		return exec.Command(jexecPath, append([]string{jidArg, path}, args...)...)
	}
	shArgs := append([]string{path}, args...)
	script := "cd \"$1\" && shift && exec \"$@\""
	cmdArgs := append([]string{jidArg, "/bin/sh", "-c", script, "sh", dir}, shArgs...)
	return exec.Command(jexecPath, cmdArgs...)
}
