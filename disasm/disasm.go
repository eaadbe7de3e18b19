// Package disasm renders a Program back to a readable listing,
// restoring label sites and symbolic table references.
package disasm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.vmasm.dev/vmasm/op"
)

const minNormalFloat64 = 2.2250738585072014e-308

// Disassemble renders prog as source text: one `name:` line per label
// site immediately before the instruction it binds to, four-space
// indented mnemonics with comma-separated arguments, and any table
// entries whose index falls outside the instruction stream as trailing
// `#table name` declarations.
func Disassemble(prog *op.Program) string {
	labelSites := map[int][]string{}
	var trailing []string
	for name, idx := range prog.Tables {
		if idx >= 0 && int(idx) < len(prog.Instructions) {
			labelSites[int(idx)] = append(labelSites[int(idx)], name)
		} else {
			trailing = append(trailing, name)
		}
	}
	for idx := range labelSites {
		sort.Strings(labelSites[idx])
	}
	sort.Strings(trailing)

	var buf strings.Builder
	for i, instr := range prog.Instructions {
		for _, name := range labelSites[i] {
			buf.WriteString(name)
			buf.WriteString(":\n")
		}
		buf.WriteString("    ")
		buf.WriteString(instr.Op.String())
		if len(instr.Args) > 0 {
			buf.WriteByte(' ')
			parts := make([]string, len(instr.Args))
			for j, arg := range instr.Args {
				parts[j] = renderValue(arg, prog)
			}
			buf.WriteString(strings.Join(parts, ", "))
		}
		buf.WriteByte('\n')
	}
	for _, name := range trailing {
		buf.WriteString("#table ")
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// InstructionLines returns, for each instruction, the 0-based line
// number of its own mnemonic line within Disassemble(prog)'s output,
// skipping any label lines emitted immediately before it. The
// interactive debugger uses this to highlight the current PC.
func InstructionLines(prog *op.Program) []int {
	labelSites := map[int]int{}
	for _, idx := range prog.Tables {
		if idx >= 0 && int(idx) < len(prog.Instructions) {
			labelSites[int(idx)]++
		}
	}
	lines := make([]int, len(prog.Instructions))
	line := 0
	for i := range prog.Instructions {
		line += labelSites[i]
		lines[i] = line
		line++
	}
	return lines
}

func renderValue(v op.Value, prog *op.Program) string {
	if v.IsReg {
		return fmt.Sprintf("R%d", v.RegisterIndex())
	}
	if v.IsTable {
		return "#" + v.TableName()
	}

	data := v.Data
	if len(data) == 8 {
		f := v.Double()
		if looksSaneDouble(f) {
			return formatDouble(f)
		}
		n := v.Int64()
		if name, ok := lookupLabelName(prog, n); ok {
			return name
		}
		return strconv.FormatInt(n, 10)
	}
	if len(data) > 0 && data[len(data)-1] == 0 {
		return quoteEscape(v.String())
	}
	return formatByteArray(data)
}

// looksSaneDouble disambiguates a genuine double payload from an int64
// payload that happens to be 8 bytes: reinterpreting small integers as
// IEEE-754 doubles almost always produces a subnormal, which this
// rejects (except exact zero).
func looksSaneDouble(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return true
	}
	if f == 0 {
		return true
	}
	abs := math.Abs(f)
	if abs > 1e300 {
		return false
	}
	return abs >= minNormalFloat64
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func lookupLabelName(prog *op.Program, n int64) (string, bool) {
	var best string
	found := false
	for name, idx := range prog.Tables {
		if idx == n && (!found || name < best) {
			best = name
			found = true
		}
	}
	return best, found
}

func quoteEscape(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func formatByteArray(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02x", b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
