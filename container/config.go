// Package container holds the static, on-disk description of a container
// (Config) and the live, constructed form the supervisor drives
// (RunningContainer). Loading Config from disk and turning it into a
// RunningContainer is a front-end concern — the supervisor core never
// reads a Config file itself.
package container

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/xcjail/xc/models"
)

// Config is the on-disk descriptor for one container, loaded by the
// daemon front-end (cmd/xcd) before constructing a RunningContainer.
// Modeled after runsc/config's flat, TOML-friendly field style, trimmed
// to what a jail supervisor needs.
type Config struct {
	ID      string `toml:"id"`
	Root    string `toml:"root"`
	JID     int    `toml:"jid"`
	Linux   bool   `toml:"linux"`
	Persist bool   `toml:"persist"`

	InitNoRun   bool `toml:"init_norun"`
	MainNoRun   bool `toml:"main_norun"`
	DeinitNoRun bool `toml:"deinit_norun"`

	Init   []models.ExecSpec `toml:"init"`
	Main   *models.ExecSpec  `toml:"main"`
	Deinit []models.ExecSpec `toml:"deinit"`

	ControlSocket string `toml:"control_socket"`
	AutoStart     bool   `toml:"auto_start"`
}

// LoadConfig reads and parses a Config from a TOML file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading container config %q: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing container config %q: %w", path, err)
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("container config %q: id must be set", path)
	}
	return &cfg, nil
}
