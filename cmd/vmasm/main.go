// vmasm is the toolkit's command-line front-end: run, build, disasm,
// and debug a register VM program image.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"go.vmasm.dev/vmasm/asm"
	"go.vmasm.dev/vmasm/cli"
	"go.vmasm.dev/vmasm/disasm"
	"go.vmasm.dev/vmasm/engine"
	"go.vmasm.dev/vmasm/manifest"
	"go.vmasm.dev/vmasm/op"
	"go.vmasm.dev/vmasm/serializer"
	"go.vmasm.dev/vmasm/vmdebug"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	verb, args := os.Args[1], os.Args[2:]
	var err error
	switch verb {
	case "run":
		err = runVerb(args)
	case "build":
		err = buildVerb(args)
	case "disasm":
		err = disasmVerb(args)
	case "debug":
		err = debugVerb(args)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %s.", verb, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <run|build|disasm|debug> [options]\n", cli.BinName(os.Args[0]))
}

func runVerb(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("v", false, "log the entry table and a completion message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	image := fs.Arg(0)
	if image == "" {
		return fmt.Errorf("usage: run <image> [-v]")
	}

	prog, err := loadImage(image)
	if err != nil {
		return err
	}

	eng := engine.New(prog)
	eng.HostExit = os.Exit
	if err := engine.InstallStock(eng, os.Stdout); err != nil {
		return fmt.Errorf("failed to install stock syscalls: %w", err)
	}

	cli.Verbosef(*verbose, "entry table %q bound to instruction %d", "main", prog.Tables["main"])
	if err := eng.Execute("main"); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	cli.Verbosef(*verbose, "execution complete")
	return nil
}

func buildVerb(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "output file, default "+cli.DefaultOutput)
	manifestPath := fs.String("manifest", "", "TOML build manifest, alternative to a source list")
	verbose := fs.Bool("v", false, "enable status messages")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var sources []asm.Source
	out := *output

	if *manifestPath != "" {
		m, err := manifest.Load(*manifestPath)
		if err != nil {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
		sources, err = m.ReadSources()
		if err != nil {
			return fmt.Errorf("failed to read manifest sources: %w", err)
		}
		if out == "" {
			out = m.Output
		}
		cli.Verbosef(*verbose, "building %d source(s) from manifest %s (entry %q)", len(sources), *manifestPath, m.Entry)
	} else {
		paths := fs.Args()
		if len(paths) == 0 {
			return fmt.Errorf("usage: build <src...> [-o out] [-manifest file] [-v]")
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("unable to open %s: %w", path, err)
			}
			sources = append(sources, asm.Source{Name: path, Text: string(data)})
		}
		cli.Verbosef(*verbose, "building %d source(s)", len(sources))
	}

	out = cli.ResolveOutput(out)

	prog, err := asm.Parse(sources)
	if err != nil {
		return fmt.Errorf("failed to compile: %w", err)
	}

	encoded, err := serializer.Encode(prog)
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	if err := os.WriteFile(out, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	cli.Verbosef(*verbose, "wrote %s", out)
	return nil
}

func disasmVerb(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	output := fs.String("o", "", "output file, default stdout")
	verbose := fs.Bool("v", false, "prefix the listing with a banner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	image := fs.Arg(0)
	if image == "" {
		return fmt.Errorf("usage: disasm <image> [-o out] [-v]")
	}

	prog, err := loadImage(image)
	if err != nil {
		return err
	}

	listing := disasm.Disassemble(prog)
	if *verbose {
		listing = fmt.Sprintf("// Disassembly of %s\n%s", image, listing)
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(listing), 0644)
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		listing = highlightMnemonics(listing)
	}
	fmt.Print(listing)
	return nil
}

func debugVerb(args []string) error {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	image := fs.Arg(0)
	if image == "" {
		return fmt.Errorf("usage: debug <image>")
	}

	prog, err := loadImage(image)
	if err != nil {
		return err
	}
	return vmdebug.Run(image, prog)
}

func loadImage(path string) (*op.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	prog, err := serializer.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return prog, nil
}

// highlightMnemonics colors the opcode of each instruction line cyan. It is
// cosmetic only: color is applied to stdout, never to a written file.
func highlightMnemonics(listing string) string {
	lines := strings.Split(listing, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "    ") {
			continue
		}
		body := strings.TrimPrefix(line, "    ")
		fields := strings.SplitN(body, " ", 2)
		rest := ""
		if len(fields) > 1 {
			rest = " " + fields[1]
		}
		lines[i] = "    \033[36m" + fields[0] + "\033[0m" + rest
	}
	return strings.Join(lines, "\n")
}
