// Package manifest loads the TOML build manifest accepted by
// `build -manifest`, an alternative to listing sources on the command
// line.
package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"go.vmasm.dev/vmasm/asm"
)

// Manifest is a build description: a list of sources, an output path,
// and an entry table name. Entry is informational only — it does not
// change what Execute is later called with.
type Manifest struct {
	Output  string   `toml:"output"`
	Entry   string   `toml:"entry"`
	Sources []string `toml:"sources"`
}

const (
	defaultOutput = "a.vmc"
	defaultEntry  = "main"
)

// Load parses a manifest file at path. Sources is required; Output and
// Entry fall back to their defaults when absent.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("%s: sources is required and must be non-empty", path)
	}
	if m.Output == "" {
		m.Output = defaultOutput
	}
	if m.Entry == "" {
		m.Entry = defaultEntry
	}
	return &m, nil
}

// ReadSources reads every file named in m.Sources concurrently, then
// returns asm.Source values in the manifest's listed order so the
// logical concatenation the assembler performs is deterministic
// regardless of read completion order.
func (m *Manifest) ReadSources() ([]asm.Source, error) {
	sources := make([]asm.Source, len(m.Sources))

	var g errgroup.Group
	for i, path := range m.Sources {
		i, path := i, path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("unable to open %s: %w", path, err)
			}
			sources[i] = asm.Source{Name: path, Text: string(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}
