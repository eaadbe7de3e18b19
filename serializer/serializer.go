// Package serializer encodes and decodes the binary program image
// described in the format notes: a fixed magic header, the tables map,
// then the instruction stream, all little-endian.
package serializer

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"go.vmasm.dev/vmasm/op"
)

// Magic identifies a program image. The trailing byte is a format
// version; a mismatch on either is a load failure, not a parse retry.
var Magic = [4]byte{'V', 'M', 'C', 0x01}

var (
	// ErrBadMagic means the input does not start with Magic.
	ErrBadMagic = fmt.Errorf("serializer: bad magic")
	// ErrTruncated means the input ended before a declared length was
	// fully read.
	ErrTruncated = fmt.Errorf("serializer: truncated image")
)

// Encode serializes prog to its binary image.
func Encode(prog *op.Program) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])

	names := make([]string, 0, len(prog.Tables))
	for name := range prog.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	writeUint32(&buf, uint32(len(names)))
	for _, name := range names {
		key := append([]byte(name), 0)
		writeUint32(&buf, uint32(len(key)))
		buf.Write(key)
		writeInt64(&buf, prog.Tables[name])
	}

	writeUint32(&buf, uint32(len(prog.Instructions)))
	for _, instr := range prog.Instructions {
		payload, err := encodeInstruction(instr)
		if err != nil {
			return nil, err
		}
		writeUint32(&buf, uint32(len(payload)))
		buf.Write(payload)
	}

	return buf.Bytes(), nil
}

func encodeInstruction(instr op.Instruction) ([]byte, error) {
	if len(instr.Args) > 255 {
		return nil, fmt.Errorf("serializer: instruction has too many arguments (%d)", len(instr.Args))
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(instr.Op))
	buf.WriteByte(byte(len(instr.Args)))
	for _, arg := range instr.Args {
		if arg.IsReg {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeUint32(&buf, uint32(len(arg.Data)))
		buf.Write(arg.Data)
	}
	return buf.Bytes(), nil
}

// Decode reads a binary image into a Program. is_table is not a
// persisted bit; right after the raw bytes are read, every non-register
// Value whose data (trailing NUL trimmed) names an entry already present
// in the decoded tables map has its IsTable flag set, once, so engine
// and disassembler code downstream can trust it without re-deriving it.
func Decode(data []byte) (*op.Program, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	numTables, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	tables := make(map[string]int64, numTables)
	for i := uint32(0); i < numTables; i++ {
		keylen, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		key := make([]byte, keylen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("%w: table key: %v", ErrTruncated, err)
		}
		name := trimTrailingNUL(key)
		value, err := readInt64(r)
		if err != nil {
			return nil, err
		}
		tables[name] = value
	}

	numInstrs, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	instructions := make([]op.Instruction, numInstrs)
	for i := uint32(0); i < numInstrs; i++ {
		size, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("%w: instruction %d: %v", ErrTruncated, i, err)
		}
		instr, err := decodeInstruction(payload)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		instructions[i] = instr
	}

	reconstructTableFlags(instructions, tables)

	return &op.Program{Instructions: instructions, Tables: tables}, nil
}

func decodeInstruction(payload []byte) (op.Instruction, error) {
	r := bytes.NewReader(payload)

	opcodeByte, err := r.ReadByte()
	if err != nil {
		return op.Instruction{}, fmt.Errorf("%w: opcode: %v", ErrTruncated, err)
	}
	code := op.Opcode(opcodeByte)

	argc, err := r.ReadByte()
	if err != nil {
		return op.Instruction{}, fmt.Errorf("%w: argc: %v", ErrTruncated, err)
	}

	args := make([]op.Value, argc)
	for i := 0; i < int(argc); i++ {
		isReg, err := r.ReadByte()
		if err != nil {
			return op.Instruction{}, fmt.Errorf("%w: arg %d is_reg: %v", ErrTruncated, i, err)
		}
		datalen, err := readUint32(r)
		if err != nil {
			return op.Instruction{}, err
		}
		buf := make([]byte, datalen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return op.Instruction{}, fmt.Errorf("%w: arg %d data: %v", ErrTruncated, i, err)
		}
		args[i] = op.Value{IsReg: isReg != 0, Data: buf}
	}

	return op.Instruction{Op: code, Args: args}, nil
}

func reconstructTableFlags(instructions []op.Instruction, tables map[string]int64) {
	for i := range instructions {
		args := instructions[i].Args
		for j := range args {
			if args[j].IsReg {
				continue
			}
			name := trimTrailingNUL(args[j].Data)
			if _, ok := tables[name]; ok {
				args[j].IsTable = true
			}
		}
	}
}

func trimTrailingNUL(b []byte) string {
	if len(b) > 0 && b[len(b)-1] == 0 {
		return string(b[:len(b)-1])
	}
	return string(b)
}

func writeUint32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, n int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	buf.Write(b[:])
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
