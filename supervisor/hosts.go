package supervisor

import (
	"fmt"
	"os"

	"github.com/xcjail/xc/models"
)

// writeHostsLocked resolves the container's /etc/hosts path and
// overwrites it under the container's metadata lock, so a write_hosts
// call never races another control-stream handler mutating the same
// on-disk file (the lock also guards the metadata directory more
// broadly; this is its one concrete user today).
func (r *Runner) writeHostsLocked(entries []models.HostEntry) error {
	hostsPath, err := resolveHostsPath(r.container.Root)
	if err != nil {
		r.log.WithError(err).Warn("cannot resolve /etc/hosts, skipping write")
		return nil
	}

	if err := r.container.Lock(); err != nil {
		return fmt.Errorf("supervisor: locking container metadata: %w", err)
	}
	defer r.container.Unlock()

	return writeHosts(hostsPath, entries)
}

// writeHosts truncates or creates path and writes the two fixed
// localhost lines followed by one line per entry.
func writeHosts(path string, entries []models.HostEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("supervisor: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString("::1 localhost\n"); err != nil {
		return err
	}
	if _, err := f.WriteString("127.0.0.1 localhost\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(f, "%s %s\n", e.IPAddr, e.Hostname); err != nil {
			return err
		}
	}
	return nil
}
