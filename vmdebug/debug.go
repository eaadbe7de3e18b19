// Package vmdebug is the interactive terminal debugger: a tcell/tview
// front-end over the engine package that steps a loaded program one
// instruction at a time. It introduces no new execution semantics.
package vmdebug

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"

	"go.vmasm.dev/vmasm/disasm"
	"go.vmasm.dev/vmasm/engine"
	"go.vmasm.dev/vmasm/op"
)

type session struct {
	id  uuid.UUID
	eng *engine.Engine

	listingLines []string
	instrLine    []int

	app     *tview.Application
	listing *tview.TextView
	regs    *tview.TextView
	log     *tview.TextView

	done bool
}

// Run opens the interactive debugger on prog, installing the stock
// syscalls itself. image labels the window title only.
func Run(image string, prog *op.Program) error {
	eng := engine.New(prog)
	eng.Trace = make(chan engine.Message, 256)
	eng.HostExit = func(int) {}

	var discard strings.Builder
	if err := engine.InstallStock(eng, &discard); err != nil {
		return fmt.Errorf("failed to install stock syscalls: %w", err)
	}
	eng.PC = prog.Tables["main"]

	s := &session{
		id:           uuid.New(),
		eng:          eng,
		listingLines: strings.Split(strings.TrimRight(disasm.Disassemble(prog), "\n"), "\n"),
		instrLine:    disasm.InstructionLines(prog),
	}

	s.app = tview.NewApplication()

	s.listing = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	s.listing.SetBorder(true).SetTitle(fmt.Sprintf(" %s  session %s ", image, s.id))

	s.regs = tview.NewTextView().SetDynamicColors(true)
	s.regs.SetBorder(true).SetTitle("Registers")

	s.log = tview.NewTextView().SetDynamicColors(true)
	s.log.SetBorder(true).SetTitle("Trace")
	s.log.ScrollToEnd()

	go func() {
		for msg := range eng.Trace {
			s.app.QueueUpdateDraw(func() {
				fmt.Fprintf(s.log, "[%d] %s %s\n", msg.PC, msg.Type, msg.Message)
			})
		}
	}()

	sidebar := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.regs, 0, 1, false).
		AddItem(s.log, 0, 1, false)

	root := tview.NewFlex().
		AddItem(s.listing, 0, 2, true).
		AddItem(sidebar, 0, 1, false)

	help := tview.NewTextView().SetText("n: step   r: run to completion   q: quit").SetDynamicColors(true)
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(root, 0, 1, true).
		AddItem(help, 1, 0, false)

	s.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'n':
			s.step()
			return nil
		case 'r':
			s.runToCompletion()
			return nil
		case 'q':
			s.app.Stop()
			return nil
		}
		return event
	})

	s.redraw()

	return s.app.SetRoot(layout, true).SetFocus(layout).Run()
}

func (s *session) step() {
	if s.done {
		return
	}
	halted, err := s.eng.Step()
	if err != nil {
		fmt.Fprintf(s.log, "[red]%s[-]\n", err)
	}
	if halted || err != nil {
		s.done = true
	}
	s.redraw()
}

func (s *session) runToCompletion() {
	for !s.done {
		halted, err := s.eng.Step()
		if err != nil {
			fmt.Fprintf(s.log, "[red]%s[-]\n", err)
			s.done = true
			break
		}
		if halted {
			s.done = true
			break
		}
	}
	s.redraw()
}

func (s *session) redraw() {
	currentLine := -1
	if s.eng.PC >= 0 && int(s.eng.PC) < len(s.instrLine) {
		currentLine = s.instrLine[s.eng.PC]
	}

	var listing strings.Builder
	for i, line := range s.listingLines {
		escaped := tview.Escape(line)
		if i == currentLine {
			fmt.Fprintf(&listing, "[black:white]%s[-:-]\n", escaped)
			continue
		}
		listing.WriteString(escaped)
		listing.WriteByte('\n')
	}
	s.listing.SetText(listing.String())

	var regs strings.Builder
	fmt.Fprintf(&regs, "PC: %d\n\n", s.eng.PC)
	for i, v := range s.eng.Registers {
		if len(v.Data) == 0 {
			continue
		}
		fmt.Fprintf(&regs, "R%-3d = %d\n", i, v.Int64())
	}
	regs.WriteString("\nSnapshot:\n")
	for i, v := range s.eng.Snapshot {
		if len(v.Data) == 0 {
			continue
		}
		fmt.Fprintf(&regs, "S%-3d = %d\n", i, v.Int64())
	}
	if s.done {
		regs.WriteString("\n[green]stopped[-]\n")
	}
	s.regs.SetText(regs.String())
}
