// Package config loads corvid's optional boot-time configuration: network
// path, worker thread count, and default search-parameter overrides. Spec
// §8's TunableParams stay runtime-settable via "setoption"; this package
// only covers what a process needs before it can even start accepting
// protocol commands, grounded on the pack's TOML-configured engine
// (frankkopp-FrankyGo uses github.com/BurntSushi/toml for the same role).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/corvidchess/corvid/mcts"
)

// Config is the top-level shape of corvid.toml. Load decodes the file onto
// Default(), so a field the file omits keeps its default; a field the file
// sets explicitly, even to zero, takes that value. Engine.Threads defaults
// to zero, which the engine commands replace with runtime.NumCPU().
type Config struct {
	Network Network     `toml:"network"`
	Engine  Engine      `toml:"engine"`
	Search  mcts.Params `toml:"search"`
}

// Network points at the packed blob network.Load reads.
type Network struct {
	Path string `toml:"path"`
}

// Engine holds process-level knobs outside the search params table.
type Engine struct {
	Threads int `toml:"threads"`
}

// Default returns a Config with DefaultParams() for Search and zero values
// elsewhere, the configuration a fresh process should use when no
// corvid.toml is found.
func Default() Config {
	return Config{Search: mcts.DefaultParams()}
}

// Load reads path and merges it onto Default(): any TOML field left unset
// keeps its default rather than being zeroed, since corvid.toml is meant
// to override a handful of knobs, not restate all of them. A missing file
// is not an error — Load returns Default() unchanged — but a malformed
// one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: decode %s", path)
	}
	return cfg, nil
}
