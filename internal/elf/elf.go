// Package elf wraps the two FreeBSD host capabilities the spawn engine
// needs for Linux-ABI binaries: checking that a Linux compatibility
// kernel module is loaded, and branding an ELF binary for the Linux ABI
// via brandelf(8). Both are external collaborators invoked as plain
// capabilities, never reimplemented here.
package elf

import (
	"bytes"
	"fmt"
	"os/exec"
)

// Brand is an ELF ABI brand accepted by brandelf(8).
type Brand string

// BrandLinux is the only brand this supervisor ever applies.
const BrandLinux Brand = "Linux"

const brandelfPath = "/usr/bin/brandelf"

// ExistsKmod reports whether any of the named kernel modules is
// currently loaded, via kldstat(8). The spawn engine calls this with
// both "linux" and "linux64" per the two historical module names.
func ExistsKmod(names ...string) bool {
	for _, name := range names {
		cmd := exec.Command("/sbin/kldstat", "-q", "-m", name)
		if err := cmd.Run(); err == nil {
			return true
		}
	}
	return false
}

// current reports the ELF brand already applied to path, using
// `brandelf -v`'s "File ... is of brand '<brand>'" output.
func current(path string) (string, error) {
	cmd := exec.Command(brandelfPath, "-v", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("elf: brandelf -v %s: %w", path, err)
	}
	return out.String(), nil
}

// BrandIfUnsupported brands path with brand unless `brandelf -v` already
// reports that same brand for it. A binary carrying any other brand, or
// none, is re-branded with brand.
func BrandIfUnsupported(path string, brand Brand) error {
	out, err := current(path)
	if err == nil && bytes.Contains([]byte(out), []byte("brand '"+string(brand)+"'")) {
		return nil
	}
	cmd := exec.Command(brandelfPath, "-t", string(brand), path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("elf: brandelf -t %s %s: %w (%s)", brand, path, err, stderr.String())
	}
	return nil
}
