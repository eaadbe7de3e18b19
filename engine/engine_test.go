package engine

import (
	"strings"
	"testing"

	"go.vmasm.dev/vmasm/asm"
	"go.vmasm.dev/vmasm/op"
)

func compile(t *testing.T, src string) *op.Program {
	t.Helper()
	prog, err := asm.CompileStrings(asm.Source{Name: "<test>", Text: src})
	if err != nil {
		t.Fatalf("CompileStrings: %v", err)
	}
	return prog
}

func TestExecuteHelloWorld(t *testing.T) {
	prog := compile(t, `
#table main
main:
    mov "hello\n", R0
    sys 1, R0
    halt
`)
	var out strings.Builder
	eng := New(prog)
	if err := InstallStock(eng, &out); err != nil {
		t.Fatalf("InstallStock: %v", err)
	}
	if err := eng.Execute("main"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestExecuteArithmeticAndBranch(t *testing.T) {
	prog := compile(t, `
main:
    mov 3, R0
    mov 4, R1
    add R0, R1, R2
    sub R2, 7, R3
    jz R3, ok
    halt
ok:
    mov "ok", R4
    sys 1, R4
    halt
`)
	var out strings.Builder
	eng := New(prog)
	if err := InstallStock(eng, &out); err != nil {
		t.Fatalf("InstallStock: %v", err)
	}
	if err := eng.Execute("main"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "ok" {
		t.Errorf("stdout = %q, want %q", got, "ok")
	}
}

func TestExecuteSnapshotSwap(t *testing.T) {
	prog := compile(t, `
main:
    mov 1, R0
    snap_save
    mov 2, R0
    snap_swap
    halt
`)
	eng := New(prog)
	if err := eng.Execute("main"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := eng.Registers[0].Int64(); got != 1 {
		t.Errorf("R0 = %d, want 1", got)
	}
}

func TestExecuteTableDefaultEntry(t *testing.T) {
	prog := compile(t, `
#table start
start:
    mov 42, R0
    halt
`)
	eng := New(prog)
	if err := eng.Execute("start"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := eng.Registers[0].Int64(); got != 42 {
		t.Errorf("R0 = %d, want 42", got)
	}
}

func TestExecuteByteArrayDoesNotPanic(t *testing.T) {
	prog := compile(t, `main:
    mov [0x01, 0x02, 0x03], R0
    halt
`)
	eng := New(prog)
	if err := eng.Execute("main"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := string(eng.Registers[0].Bytes()); got != "\x01\x02\x03" {
		t.Errorf("R0 bytes = %v, want [1 2 3]", eng.Registers[0].Bytes())
	}
}

func TestExecuteRegisterOutOfRangeFails(t *testing.T) {
	prog := &op.Program{
		Instructions: []op.Instruction{
			{Op: op.Neg, Args: []op.Value{op.RegisterValue(0), op.RegisterValue(200)}},
		},
		Tables: map[string]int64{"main": 0},
	}
	eng := New(prog)
	if err := eng.Execute("main"); err == nil {
		t.Fatal("expected a register-range error")
	}
}

func TestExecuteUnknownSyscallFails(t *testing.T) {
	prog := compile(t, `main:
    sys 99
    halt
`)
	eng := New(prog)
	if err := eng.Execute("main"); err == nil {
		t.Fatal("expected an unknown-syscall error")
	}
}

func TestRegisterSyscallRejectsZero(t *testing.T) {
	eng := New(op.NewProgram())
	if err := eng.RegisterSyscall(0, func(*Engine, []op.Value) error { return nil }); err == nil {
		t.Fatal("expected an error registering syscall id 0")
	}
}

func TestExecuteMissingEntryDefaultsToZero(t *testing.T) {
	prog := compile(t, `main:
    mov 7, R0
    halt
`)
	eng := New(prog)
	if err := eng.Execute("nonexistent"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := eng.Registers[0].Int64(); got != 7 {
		t.Errorf("R0 = %d, want 7", got)
	}
}
