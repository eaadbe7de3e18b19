package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.vmasm.dev/vmasm/op"
)

var (
	ErrUnknownOpcode  = errors.New("asm: unknown opcode")
	ErrArity          = errors.New("asm: wrong argument count")
	ErrRegisterRange  = errors.New("asm: register index out of range")
	ErrDuplicateLabel = errors.New("asm: duplicate label")
)

// Source is one logically-concatenated input to the assembler: either a
// file read from disk or an in-memory string (tests mostly use the
// latter). Name is used only for diagnostics.
type Source struct {
	Name string
	Text string
}

type labelInfo struct {
	index int64
	file  int
	line  int
}

// pendingRef marks an instruction argument that was a bare identifier at
// parse time and must be resolved once every label and table name is
// known.
type pendingRef struct {
	instr int
	arg   int
	token string
}

type parser struct {
	labels       map[string]labelInfo
	tables       map[string]int64
	instructions []op.Instruction
	pending      []pendingRef
}

func newParser() *parser {
	return &parser{
		labels: map[string]labelInfo{},
		tables: map[string]int64{},
	}
}

// Parse runs the three passes described in §4.3 over sources, in order,
// and returns the resulting program.
func Parse(sources []Source) (*op.Program, error) {
	p := newParser()
	for fileIdx, src := range sources {
		if err := p.parseSource(fileIdx, src.Text); err != nil {
			name := src.Name
			if name == "" {
				name = fmt.Sprintf("source[%d]", fileIdx)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	p.resolveReferences()
	p.generateTables()
	return &op.Program{Instructions: p.instructions, Tables: p.tables}, nil
}

func (p *parser) parseSource(fileIdx int, text string) error {
	lines := strings.Split(text, "\n")
	inBlockComment := false
	for i, raw := range lines {
		lineNum := i + 1
		if err := p.processLine(raw, fileIdx, lineNum, &inBlockComment); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	return nil
}

func (p *parser) processLine(line string, fileIdx, lineNum int, inBlockComment *bool) error {
	line = strings.TrimSpace(line)

	var kept strings.Builder
	for {
		if *inBlockComment {
			end := strings.Index(line, "*/")
			if end < 0 {
				break
			}
			*inBlockComment = false
			line = line[end+2:]
		}
		start := strings.Index(line, "/*")
		if start < 0 {
			kept.WriteString(line)
			break
		}
		kept.WriteString(line[:start])
		*inBlockComment = true
		line = line[start+2:]
	}
	line = kept.String()
	if idx := strings.Index(line, "//"); idx >= 0 {
		line = line[:idx]
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "#table") {
		rest := strings.TrimSpace(line[len("#table"):])
		tokens, err := tokenize(rest)
		if err != nil {
			return err
		}
		if len(tokens) != 1 {
			return fmt.Errorf("invalid table definition syntax")
		}
		p.tables[strings.ToLower(tokens[0])] = 0
		return nil
	}

	if strings.HasSuffix(line, ":") {
		name := strings.ToLower(strings.TrimSuffix(line, ":"))
		if name == "" {
			return fmt.Errorf("empty label name")
		}
		if prev, exists := p.labels[name]; exists {
			return fmt.Errorf("%w: %q, first declared at file %d line %d", ErrDuplicateLabel, name, prev.file, prev.line)
		}
		p.labels[name] = labelInfo{index: int64(len(p.instructions)), file: fileIdx, line: lineNum}
		return nil
	}

	instr, pend, err := p.parseInstruction(line)
	if err != nil {
		return err
	}
	idx := len(p.instructions)
	p.instructions = append(p.instructions, instr)
	for i := range pend {
		pend[i].instr = idx
		p.pending = append(p.pending, pend[i])
	}
	return nil
}

func (p *parser) parseInstruction(line string) (op.Instruction, []pendingRef, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return op.Instruction{}, nil, err
	}
	if len(tokens) == 0 {
		return op.Instruction{}, nil, fmt.Errorf("empty instruction")
	}

	code, ok := op.ParseOpcode(tokens[0])
	if !ok {
		return op.Instruction{}, nil, fmt.Errorf("%w: %s", ErrUnknownOpcode, tokens[0])
	}

	var args []op.Value
	var pend []pendingRef
	for _, tok := range tokens[1:] {
		if tok == "," {
			continue
		}
		v, raw, isBare, err := parseValue(tok)
		if err != nil {
			return op.Instruction{}, nil, fmt.Errorf("%s: %w", code, err)
		}
		argIdx := len(args)
		args = append(args, v)
		if isBare {
			pend = append(pend, pendingRef{arg: argIdx, token: raw})
		}
	}

	if n, fixed := code.Arity(); fixed {
		if len(args) != n {
			return op.Instruction{}, nil, fmt.Errorf("%w: %s: expected %d argument(s), got %d", ErrArity, code, n, len(args))
		}
	} else if code == op.Sys && len(args) < 1 {
		return op.Instruction{}, nil, fmt.Errorf("%w: sys: expected at least 1 argument, got 0", ErrArity)
	}

	return op.Instruction{Op: code, Args: args}, pend, nil
}

// parseValue classifies a single token per §4.3's token kinds. For a
// bare identifier it returns isBare=true and raw holding the original
// text, since resolution happens only in a later pass once every label
// and table name is known.
func parseValue(token string) (v op.Value, raw string, isBare bool, err error) {
	switch {
	case isRegister(token):
		n, convErr := strconv.Atoi(token[1:])
		if convErr != nil {
			return op.Value{}, "", false, fmt.Errorf("invalid register index: %s", token)
		}
		if n < 0 || n >= op.NumRegisters {
			return op.Value{}, "", false, fmt.Errorf("%w (0-%d): %s", ErrRegisterRange, op.NumRegisters-1, token)
		}
		return op.RegisterValue(uint8(n)), "", false, nil

	case isTableRef(token):
		name := strings.ToLower(token[1:])
		return op.TableValue(name), "", false, nil

	case isByteArray(token):
		b, err := parseByteArray(token)
		if err != nil {
			return op.Value{}, "", false, err
		}
		var val op.Value
		val.SetBytes(b)
		return val, "", false, nil

	case isStringLiteral(token):
		s, err := unescapeString(token[1 : len(token)-1])
		if err != nil {
			return op.Value{}, "", false, err
		}
		var val op.Value
		val.SetString(s)
		return val, "", false, nil

	case isFloat(token):
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return op.Value{}, "", false, fmt.Errorf("invalid float literal: %s", token)
		}
		var val op.Value
		val.SetDouble(f)
		return val, "", false, nil

	case isInteger(token):
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return op.Value{}, "", false, fmt.Errorf("invalid integer literal: %s", token)
		}
		var val op.Value
		val.SetInt64(n)
		return val, "", false, nil

	default:
		var val op.Value
		val.SetString(token)
		return val, token, true, nil
	}
}

// resolveReferences is pass 2: every argument that was a bare identifier
// is rewritten to a label-index immediate or a table reference. An
// identifier matching neither is left as the raw-text placeholder set
// during parsing (a NUL-terminated string immediate) and is not reported
// as an error.
func (p *parser) resolveReferences() {
	for _, pr := range p.pending {
		name := strings.ToLower(pr.token)
		instr := &p.instructions[pr.instr]
		if info, ok := p.labels[name]; ok {
			instr.Args[pr.arg].SetInt64(info.index)
			instr.Args[pr.arg].IsTable = false
			continue
		}
		if _, ok := p.tables[name]; ok {
			instr.Args[pr.arg] = op.TableValue(name)
		}
	}
}

// generateTables is pass 3: every label binding is copied into the
// tables map, overwriting any #table entry of the same name.
func (p *parser) generateTables() {
	for name, info := range p.labels {
		p.tables[name] = info.index
	}
}
