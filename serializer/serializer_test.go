package serializer

import (
	"bytes"
	"testing"

	"go.vmasm.dev/vmasm/op"
)

func sampleProgram() *op.Program {
	var str op.Value
	str.SetString("hello\n")
	r0 := op.RegisterValue(0)

	var id op.Value
	id.SetInt64(1)

	return &op.Program{
		Instructions: []op.Instruction{
			{Op: op.Mov, Args: []op.Value{str, r0}},
			{Op: op.Sys, Args: []op.Value{id, r0}},
			{Op: op.Jmp, Args: []op.Value{op.TableValue("main")}},
			{Op: op.Halt},
		},
		Tables: map[string]int64{"main": 0, "start": 2},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	prog := sampleProgram()

	encoded, err := Encode(prog)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded.Instructions) != len(prog.Instructions) {
		t.Fatalf("got %d instructions, want %d", len(decoded.Instructions), len(prog.Instructions))
	}
	for i, instr := range decoded.Instructions {
		want := prog.Instructions[i]
		if instr.Op != want.Op {
			t.Errorf("instruction %d: Op = %v, want %v", i, instr.Op, want.Op)
		}
		if len(instr.Args) != len(want.Args) {
			t.Fatalf("instruction %d: got %d args, want %d", i, len(instr.Args), len(want.Args))
		}
		for j, arg := range instr.Args {
			wantArg := want.Args[j]
			if arg.IsReg != wantArg.IsReg {
				t.Errorf("instruction %d arg %d: IsReg = %v, want %v", i, j, arg.IsReg, wantArg.IsReg)
			}
			if !bytes.Equal(arg.Data, wantArg.Data) {
				t.Errorf("instruction %d arg %d: Data = %v, want %v", i, j, arg.Data, wantArg.Data)
			}
		}
	}

	for name, idx := range prog.Tables {
		got, ok := decoded.Tables[name]
		if !ok {
			t.Errorf("tables[%s] missing after decode", name)
			continue
		}
		if got != idx {
			t.Errorf("tables[%s] = %d, want %d", name, got, idx)
		}
	}
}

func TestDecodeReconstructsIsTable(t *testing.T) {
	prog := sampleProgram()
	encoded, err := Encode(prog)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	jmp := decoded.Instructions[2]
	if !jmp.Args[0].IsTable {
		t.Fatalf("jmp target did not recover IsTable after decode")
	}
	if got := jmp.Args[0].TableName(); got != "main" {
		t.Errorf("jmp target name = %q, want main", got)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	_, err := Decode([]byte{'X', 'X', 'X', 'X', 0, 0, 0, 0, 0, 0, 0, 0})
	if err == nil {
		t.Fatal("expected an error for bad magic")
	}
}

func TestDecodeTruncated(t *testing.T) {
	prog := sampleProgram()
	encoded, err := Encode(prog)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(encoded[:len(encoded)-1])
	if err == nil {
		t.Fatal("expected an error for truncated input")
	}
}

func TestEncodeEmptyProgram(t *testing.T) {
	prog := op.NewProgram()
	encoded, err := Encode(prog)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Instructions) != 0 || len(decoded.Tables) != 0 {
		t.Fatalf("expected an empty program, got %+v", decoded)
	}
}

func TestSerializeIdempotence(t *testing.T) {
	prog := sampleProgram()
	b1, err := Encode(prog)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(b1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b2, err := Encode(decoded)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(b1, b2) {
		t.Fatalf("serialize . deserialize . serialize produced different bytes")
	}
}
