package asm

import (
	"fmt"
	"os"

	"go.vmasm.dev/vmasm/op"
)

// CompileStrings assembles one or more in-memory sources, concatenated
// logically in the given order, exactly like CompileFiles.
func CompileStrings(sources ...Source) (*op.Program, error) {
	return Parse(sources)
}

// CompileFiles reads and assembles one or more source files from disk,
// concatenated logically in argument order.
func CompileFiles(paths ...string) (*op.Program, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files specified")
	}
	sources := make([]Source, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", path, err)
		}
		sources[i] = Source{Name: path, Text: string(data)}
	}
	return Parse(sources)
}
