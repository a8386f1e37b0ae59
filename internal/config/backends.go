package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// AdapterManifest is the hand-edited TOML document describing how to
// invoke each backend process. One manifest entry per backend id (A, B, C,
// or any operator-defined name).
type AdapterManifest struct {
	Adapter map[string]AdapterSpec `toml:"adapter"`
}

// AdapterSpec describes a single backend's invocation contract: the
// executable to run, how the prompt and model reach it, and how its
// stdout should be interpreted.
type AdapterSpec struct {
	Executable     string   `toml:"executable"`
	Args           []string `toml:"args"`
	Env            []string `toml:"env"`
	PromptViaStdin bool     `toml:"prompt_via_stdin"`
	StreamDialect  string   `toml:"stream_dialect"`
}

// LoadAdapterManifest reads and parses a TOML backend adapter manifest.
func LoadAdapterManifest(path string) (*AdapterManifest, error) {
	var manifest AdapterManifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil, fmt.Errorf("decode adapter manifest %s: %w", path, err)
	}
	return &manifest, nil
}
