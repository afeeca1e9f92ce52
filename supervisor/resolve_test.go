package supervisor

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExec(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFindsExecutableOnSearchPath(t *testing.T) {
	root := t.TempDir()
	writeExec(t, filepath.Join(root, "usr/bin/true"))

	path, ok := resolve(root, "/bin:/usr/bin", "true")
	if !ok {
		t.Fatalf("resolve did not find true on PATH")
	}
	if want := filepath.Join(root, "usr/bin/true"); path != want {
		t.Fatalf("resolve = %q, want %q", path, want)
	}
}

func TestResolveAbsoluteArg0IsRootedDirectly(t *testing.T) {
	root := t.TempDir()
	writeExec(t, filepath.Join(root, "bin/sh"))

	path, ok := resolve(root, "/unused", "/bin/sh")
	if !ok {
		t.Fatalf("resolve did not find absolute /bin/sh")
	}
	if want := filepath.Join(root, "bin/sh"); path != want {
		t.Fatalf("resolve = %q, want %q", path, want)
	}
}

func TestResolveRejectsNonExecutableFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "bin/data")
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte("not executable"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := resolve(root, "/bin", "data"); ok {
		t.Fatalf("resolve accepted a non-executable regular file")
	}
}

func TestResolveFollowsRelativeSymlinkWithinRoot(t *testing.T) {
	root := t.TempDir()
	writeExec(t, filepath.Join(root, "bin/real-true"))
	if err := os.Symlink("real-true", filepath.Join(root, "bin/true")); err != nil {
		t.Fatal(err)
	}

	path, ok := resolve(root, "/bin", "true")
	if !ok {
		t.Fatalf("resolve did not follow relative symlink")
	}
	if want := filepath.Join(root, "bin/real-true"); path != want {
		t.Fatalf("resolve = %q, want %q", path, want)
	}
}

func TestResolveRebasesAbsoluteSymlinkUnderRoot(t *testing.T) {
	root := t.TempDir()
	writeExec(t, filepath.Join(root, "lib/libc.so.7"))
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("/lib/libc.so.7", filepath.Join(root, "bin/libc-link")); err != nil {
		t.Fatal(err)
	}

	path, ok := resolve(root, "/bin", "libc-link")
	if !ok {
		t.Fatalf("resolve did not rebase the absolute symlink target under root")
	}
	if want := filepath.Join(root, "lib/libc.so.7"); path != want {
		t.Fatalf("resolve = %q, want %q (want it rebased under root, not host-absolute)", path, want)
	}
}

func TestResolveRejectsSymlinkEscapingRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeExec(t, filepath.Join(outside, "evil"))

	// A relative symlink walking ".." far enough to escape root entirely
	// must never resolve, regardless of what exists on the host outside root.
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	escapeTarget := filepath.Join("..", "..", "..", "..", "..", "..", "..", outside[1:], "evil")
	if err := os.Symlink(escapeTarget, filepath.Join(root, "bin", "escape")); err != nil {
		t.Fatal(err)
	}

	if _, ok := resolve(root, "/bin", "escape"); ok {
		t.Fatalf("resolve followed a symlink outside root")
	}
}

func TestResolveHostsPathDoesNotRequireFileToExist(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "etc"), 0o755); err != nil {
		t.Fatal(err)
	}

	path, err := resolveHostsPath(root)
	if err != nil {
		t.Fatalf("resolveHostsPath: %v", err)
	}
	if want := filepath.Join(root, "etc/hosts"); path != want {
		t.Fatalf("resolveHostsPath = %q, want %q", path, want)
	}
}

func TestResolveHostsPathFollowsEtcSymlink(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "real-etc"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("real-etc", filepath.Join(root, "etc")); err != nil {
		t.Fatal(err)
	}

	path, err := resolveHostsPath(root)
	if err != nil {
		t.Fatalf("resolveHostsPath: %v", err)
	}
	if want := filepath.Join(root, "real-etc/hosts"); path != want {
		t.Fatalf("resolveHostsPath = %q, want %q", path, want)
	}
}
