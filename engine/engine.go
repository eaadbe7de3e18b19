// Package engine interprets an assembled or deserialized program: a
// program counter, a 64-register file, a 64-slot snapshot bank, and a
// dispatch table of host syscalls.
package engine

import (
	"errors"
	"fmt"

	"go.vmasm.dev/vmasm/op"
)

var (
	ErrRegisterRange  = errors.New("engine: register index out of range")
	ErrPCRange        = errors.New("engine: program counter out of range")
	ErrUnknownSyscall = errors.New("engine: unknown syscall id")
	ErrSyscallID      = errors.New("engine: syscall id 0 is reserved")
)

// SyscallFunc is a host-provided handler installed under a syscall id.
// It receives the engine (to read registers or mutate state) and the
// arguments following the id in the sys instruction.
type SyscallFunc func(eng *Engine, args []op.Value) error

// Engine executes a Program. HostExit defaults to a no-op; callers that
// want the stock exit syscall to actually terminate the process must set
// it themselves (cmd/vmasm sets it to os.Exit).
type Engine struct {
	PC int64

	Registers [op.NumRegisters]op.Value
	Snapshot  [op.NumRegisters]op.Value

	Program *op.Program

	syscalls map[uint8]SyscallFunc

	HostExit func(int)

	// Trace, if non-nil, receives one Message per step, plus a
	// MsgSyscall message before the step message of each sys. It is an
	// ordinary channel: a host that sets it must keep draining it or
	// Execute will block.
	Trace chan Message
}

// New returns an Engine ready to execute prog.
func New(prog *op.Program) *Engine {
	return &Engine{
		Program:  prog,
		syscalls: map[uint8]SyscallFunc{},
		HostExit: func(int) {},
	}
}

// RegisterSyscall installs fn under id. id 0 is reserved. Registering an
// id twice replaces the prior handler.
func (e *Engine) RegisterSyscall(id uint8, fn SyscallFunc) error {
	if id == 0 {
		return ErrSyscallID
	}
	e.syscalls[id] = fn
	return nil
}

func (e *Engine) trace(msg Message) {
	if e.Trace == nil {
		return
	}
	e.Trace <- msg
}

// Execute sets PC to tables[entry] (0 if absent) and steps until a halt,
// a run-off-the-end, or an error.
func (e *Engine) Execute(entry string) error {
	e.PC = e.Program.Tables[entry]
	for {
		halted, err := e.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// Step executes exactly one instruction at the current PC and reports
// whether the run has stopped (an explicit halt or running off the end
// of the instruction stream). The interactive debugger drives execution
// one Step at a time instead of calling Execute.
func (e *Engine) Step() (halted bool, err error) {
	if e.PC < 0 || int(e.PC) >= len(e.Program.Instructions) {
		return true, nil
	}
	instr := e.Program.Instructions[e.PC]
	pc := e.PC

	if instr.Op == op.Halt {
		e.trace(NewMessage(MsgHalt, pc, "halt"))
		return true, nil
	}

	branched, err := e.step(instr)
	if err != nil {
		e.trace(NewMessage(MsgError, pc, err.Error()))
		return true, fmt.Errorf("pc %d: %w", pc, err)
	}

	if branched {
		e.trace(NewMessage(MsgBranch, pc, instr.Op.String()))
		return false, nil
	}
	e.trace(NewMessage(MsgStep, pc, instr.Op.String()))
	e.PC++
	return false, nil
}

// step executes one instruction. branched reports whether PC was set to
// an absolute target by this step, in which case Step must not also
// advance it by one.
func (e *Engine) step(instr op.Instruction) (branched bool, err error) {
	switch instr.Op {
	case op.Nop:
		return false, nil

	case op.Jmp:
		target, err := e.resolve(instr.Args[0])
		if err != nil {
			return false, err
		}
		if err := e.checkPC(target); err != nil {
			return false, err
		}
		e.PC = target
		return true, nil

	case op.Mov:
		val, err := e.evaluateMovSource(instr.Args[0])
		if err != nil {
			return false, err
		}
		if err := e.writeRegister(instr.Args[1].RegisterIndex(), val); err != nil {
			return false, err
		}
		return false, nil

	case op.Add:
		return false, e.arith(instr, func(a, b int64) int64 { return a + b })

	case op.Sub:
		return false, e.arith(instr, func(a, b int64) int64 { return a - b })

	case op.Neg:
		src, err := e.readIntOperand(instr.Args[0])
		if err != nil {
			return false, err
		}
		var result op.Value
		result.SetInt64(-src)
		return false, e.writeRegister(instr.Args[1].RegisterIndex(), result)

	case op.SnapSave:
		e.Snapshot = e.Registers
		return false, nil

	case op.SnapSwap:
		e.Registers, e.Snapshot = e.Snapshot, e.Registers
		return false, nil

	case op.SnapClear:
		e.Snapshot = [op.NumRegisters]op.Value{}
		return false, nil

	case op.RegsClear:
		e.Registers = [op.NumRegisters]op.Value{}
		return false, nil

	case op.Jz, op.Jnz, op.Jg, op.Jl:
		return e.conditionalJump(instr)

	case op.Sys:
		return false, e.syscall(instr)

	default:
		return false, fmt.Errorf("engine: unknown opcode byte %d", byte(instr.Op))
	}
}

func (e *Engine) arith(instr op.Instruction, fn func(a, b int64) int64) error {
	a, err := e.readIntOperand(instr.Args[0])
	if err != nil {
		return err
	}
	b, err := e.readIntOperand(instr.Args[1])
	if err != nil {
		return err
	}
	var result op.Value
	result.SetInt64(fn(a, b))
	return e.writeRegister(instr.Args[2].RegisterIndex(), result)
}

func (e *Engine) conditionalJump(instr op.Instruction) (bool, error) {
	src, err := e.resolve(instr.Args[0])
	if err != nil {
		return false, err
	}
	var take bool
	switch instr.Op {
	case op.Jz:
		take = src == 0
	case op.Jnz:
		take = src != 0
	case op.Jg:
		take = src > 0
	case op.Jl:
		take = src < 0
	}
	if !take {
		return false, nil
	}
	target, err := e.resolve(instr.Args[1])
	if err != nil {
		return false, err
	}
	if err := e.checkPC(target); err != nil {
		return false, err
	}
	e.PC = target
	return true, nil
}

func (e *Engine) syscall(instr op.Instruction) error {
	idVal, err := e.readIntOperand(instr.Args[0])
	if err != nil {
		return err
	}
	id := uint8(idVal)
	fn, ok := e.syscalls[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSyscall, id)
	}
	e.trace(NewMessage(MsgSyscall, e.PC, fmt.Sprintf("sys %d", id)))
	if err := fn(e, instr.Args[1:]); err != nil {
		return fmt.Errorf("syscall %d: %w", id, err)
	}
	return nil
}

// resolve implements the uniform three-way read used by jump targets
// and mov's source: register -> the register's int64 view, table ->
// the bound instruction index, immediate -> its int64 view.
func (e *Engine) resolve(v op.Value) (int64, error) {
	switch {
	case v.IsReg:
		reg, err := e.readRegister(v.RegisterIndex())
		if err != nil {
			return 0, err
		}
		return reg.Int64(), nil
	case v.IsTable:
		return e.Program.Tables[v.TableName()], nil
	default:
		return v.Int64(), nil
	}
}

// readIntOperand reads a register or a raw immediate as int64, never
// resolving a table reference. add/sub/neg operands go through this,
// not resolve, matching the reference source's observed behavior.
func (e *Engine) readIntOperand(v op.Value) (int64, error) {
	if v.IsReg {
		reg, err := e.readRegister(v.RegisterIndex())
		if err != nil {
			return 0, err
		}
		return reg.Int64(), nil
	}
	return v.Int64(), nil
}

// evaluateMovSource copies src verbatim, except a table reference is
// materialized to its resolved instruction index.
func (e *Engine) evaluateMovSource(src op.Value) (op.Value, error) {
	if src.IsTable {
		idx, err := e.resolve(src)
		if err != nil {
			return op.Value{}, err
		}
		var v op.Value
		v.SetInt64(idx)
		return v, nil
	}
	if src.IsReg {
		return e.readRegister(src.RegisterIndex())
	}
	return src, nil
}

func (e *Engine) readRegister(idx uint8) (op.Value, error) {
	if int(idx) >= op.NumRegisters {
		return op.Value{}, fmt.Errorf("%w: %d", ErrRegisterRange, idx)
	}
	return e.Registers[idx], nil
}

func (e *Engine) writeRegister(idx uint8, v op.Value) error {
	if int(idx) >= op.NumRegisters {
		return fmt.Errorf("%w: %d", ErrRegisterRange, idx)
	}
	e.Registers[idx] = v
	return nil
}

func (e *Engine) checkPC(target int64) error {
	if target < 0 || int(target) > len(e.Program.Instructions) {
		return fmt.Errorf("%w: %d", ErrPCRange, target)
	}
	return nil
}
