package engine

import (
	"fmt"
	"io"
	"strings"

	"go.vmasm.dev/vmasm/op"
)

// InstallStock registers the minimum syscall set every run/debug
// invocation needs: print (id 1) and exit (id 2). A rand handler is
// deliberately not installed.
func InstallStock(e *Engine, out io.Writer) error {
	if err := e.RegisterSyscall(1, stockPrint(out)); err != nil {
		return err
	}
	if err := e.RegisterSyscall(2, stockExit()); err != nil {
		return err
	}
	return nil
}

// derefArg reads through a register-tagged argument to the Value it
// holds; any other argument is used verbatim. Print and exit both
// accept "a register holding" their expected argument.
func derefArg(e *Engine, v op.Value) (op.Value, error) {
	if v.IsReg {
		return e.readRegister(v.RegisterIndex())
	}
	return v, nil
}

func stockPrint(out io.Writer) SyscallFunc {
	return func(e *Engine, args []op.Value) error {
		if len(args) < 1 {
			return fmt.Errorf("print: expected a format string argument")
		}
		fmtArg, err := derefArg(e, args[0])
		if err != nil {
			return err
		}
		format := fmtArg.String()
		rest := args[1:]

		var buf strings.Builder
		used := 0
		for i := 0; i < len(format); i++ {
			c := format[i]
			if c != '%' {
				buf.WriteByte(c)
				continue
			}
			i++
			if i >= len(format) {
				return fmt.Errorf("print: dangling %%%% at end of format string")
			}
			spec := format[i]
			if spec == '%' {
				buf.WriteByte('%')
				continue
			}
			if used >= len(rest) {
				return fmt.Errorf("print: not enough arguments for format string")
			}
			arg, err := derefArg(e, rest[used])
			if err != nil {
				return err
			}
			used++
			switch spec {
			case 'd':
				fmt.Fprintf(&buf, "%d", arg.Int64())
			case 'f':
				fmt.Fprintf(&buf, "%v", arg.Double())
			case 's':
				buf.WriteString(arg.String())
			case 'c':
				buf.WriteByte(byte(arg.Int64()))
			case 'x':
				fmt.Fprintf(&buf, "%x", uint64(arg.Int64()))
			default:
				return fmt.Errorf("print: unknown format specifier %%%c", spec)
			}
		}
		if used != len(rest) {
			return fmt.Errorf("print: too many arguments for format string")
		}

		if _, err := io.WriteString(out, buf.String()); err != nil {
			return err
		}
		if f, ok := out.(interface{ Flush() error }); ok {
			return f.Flush()
		}
		return nil
	}
}

func stockExit() SyscallFunc {
	return func(e *Engine, args []op.Value) error {
		if len(args) < 1 {
			return fmt.Errorf("exit: expected a status argument")
		}
		status, err := derefArg(e, args[0])
		if err != nil {
			return err
		}
		e.HostExit(int(status.Int64()))
		return nil
	}
}
