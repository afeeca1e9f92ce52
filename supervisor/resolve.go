package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxSymlinkHops bounds the executable-exists check: no single resolution
// may follow more than this many symlink hops, matching the 64-hop limit
// used for PATH_MAX-style recursion bounds in path-walking code such as
// gVisor's path resolver.
const maxSymlinkHops = 64

// rebase maps a path (absolute or relative) onto root, discarding any
// leading "/" component so it cannot escape root by virtue of being
// absolute in the caller's namespace. It does not touch the filesystem.
func rebase(root, p string) string {
	clean := filepath.Clean("/" + p)
	return filepath.Join(root, clean)
}

// existsExec reports whether candidate, resolved relative to root,
// refers to an existing, executable regular file, refusing to follow any
// symlink chain that would resolve outside root. It reports false, with
// no error, both for "not found" and for hop-count exhaustion.
func existsExec(root, candidate string, maxHops int) (string, bool) {
	path := candidate
	for hops := 0; ; hops++ {
		if hops > maxHops {
			return "", false
		}
		if !withinRoot(root, path) {
			return "", false
		}
		info, err := os.Lstat(path)
		if err != nil {
			return "", false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return "", false
			}
			if filepath.IsAbs(target) {
				path = rebase(root, target)
			} else {
				path = filepath.Join(filepath.Dir(path), target)
			}
			continue
		}
		if !info.Mode().IsRegular() {
			return "", false
		}
		if info.Mode().Perm()&0o111 == 0 {
			return "", false
		}
		return path, true
	}
}

// withinRoot reports whether path (after lexical cleaning) lies inside
// root. Both must already be absolute.
func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve finds argv0 under envPath, rooted at root, following the rules
// in the path resolver's design: an absolute argv0 is rooted directly
// under the container; otherwise every envPath entry (":"-separated) is
// tried in order.
func resolve(root, envPath, argv0 string) (string, bool) {
	if filepath.IsAbs(argv0) {
		candidate := rebase(root, argv0)
		return existsExec(root, candidate, maxSymlinkHops)
	}
	for _, search := range strings.Split(envPath, ":") {
		dir := rebase(root, search)
		candidate := filepath.Join(dir, argv0)
		if path, ok := existsExec(root, candidate, maxSymlinkHops); ok {
			return path, true
		}
	}
	return "", false
}

// resolveDir follows candidate's symlink chain the same way existsExec
// does, but accepts any existing directory rather than requiring an
// executable regular file — used to safely locate a directory (such as
// the container's /etc) that a subsequent write targets by plain file
// name, without requiring that final file to exist yet.
func resolveDir(root, candidate string, maxHops int) (string, bool) {
	path := candidate
	for hops := 0; ; hops++ {
		if hops > maxHops {
			return "", false
		}
		if !withinRoot(root, path) {
			return "", false
		}
		info, err := os.Lstat(path)
		if err != nil {
			return "", false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return "", false
			}
			if filepath.IsAbs(target) {
				path = rebase(root, target)
			} else {
				path = filepath.Join(filepath.Dir(path), target)
			}
			continue
		}
		if !info.IsDir() {
			return "", false
		}
		return path, true
	}
}

// resolveHostsPath safely locates /etc/hosts under root: the "/etc"
// directory is resolved through any symlink chain (refusing escape),
// and "hosts" is appended without requiring the file itself to already
// exist, so write_hosts' truncate-or-create semantics still apply.
func resolveHostsPath(root string) (string, error) {
	etcDir, ok := resolveDir(root, rebase(root, "/etc"), maxSymlinkHops)
	if !ok {
		return "", fmt.Errorf("supervisor: cannot resolve /etc under container root")
	}
	return filepath.Join(etcDir, "hosts"), nil
}
