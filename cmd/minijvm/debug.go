package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/chazu/minijvm/classfile"
	"github.com/chazu/minijvm/vm"
)

const (
	debugPrompt = "(mjdb) "
	historyFile = ".minijvm_history"
)

var debugCommand = cli.Command{
	Action:    debug,
	Name:      "debug",
	Usage:     "Step through a program interactively",
	ArgsUsage: "<MainClass>",
	Flags:     []cli.Flag{classpathFlag, maxDepthFlag},
	Description: `
Commands:
  step [n]   execute n instructions (default 1)
  continue   run to the end of the program
  stack      show the call stack
  locals     show the local variables of the top frame
  ops        show the operand stack of the top frame
  quit       leave the debugger
`,
}

func debug(ctx *cli.Context) error {
	path, classes, err := openClasspath(ctx)
	if err != nil {
		return err
	}
	defer path.Close()
	className, _, err := mainClass(ctx, path)
	if err != nil {
		return err
	}

	interp := newInterpreter(ctx, classes)
	interp.Trace = nil
	if err := interp.Start(className, "main", vm.HandleValue(vm.ArgsHandle)); err != nil {
		return err
	}

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(completeDebugCommand)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	d := &debugger{interp: interp, out: os.Stdout}
	d.where()
	for {
		line, err := ln.Prompt(debugPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if d.exec(context.Background(), line) {
			return nil
		}
	}
}

var debugCommands = []string{"step", "continue", "stack", "locals", "ops", "help", "quit"}

func completeDebugCommand(line string) []string {
	var out []string
	for _, c := range debugCommands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// debugger: command interpreter over a started vm.Interpreter
// ---------------------------------------------------------------------------

type debugger struct {
	interp   *vm.Interpreter
	out      io.Writer
	finished bool
}

// exec runs one debugger command and reports whether to quit.
func (d *debugger) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "step", "s":
		n := 1
		if len(fields) > 1 {
			v, err := strconv.Atoi(fields[1])
			if err != nil || v < 1 {
				fmt.Fprintf(d.out, "step: invalid count %q\n", fields[1])
				return false
			}
			n = v
		}
		d.step(n)
	case "continue", "c":
		if d.check() {
			d.finish(d.interp.Run(ctx))
		}
	case "stack", "bt":
		d.stack()
	case "locals":
		if f := d.top(); f != nil {
			for i, v := range f.Locals() {
				fmt.Fprintf(d.out, "  %d: %s\n", i, v)
			}
		}
	case "ops":
		if f := d.top(); f != nil {
			ops := f.Stack()
			if len(ops) == 0 {
				fmt.Fprintln(d.out, "  (empty)")
			}
			for i := len(ops) - 1; i >= 0; i-- {
				fmt.Fprintf(d.out, "  %s\n", ops[i])
			}
		}
	case "help", "h", "?":
		fmt.Fprintln(d.out, "commands: step [n], continue, stack, locals, ops, quit")
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintf(d.out, "unknown command %q. Type help for a list.\n", fields[0])
	}
	return false
}

// check reports whether the program can still run.
func (d *debugger) check() bool {
	if d.finished {
		fmt.Fprintln(d.out, "program is not running")
		return false
	}
	return true
}

func (d *debugger) step(n int) {
	if !d.check() {
		return
	}
	for ; n > 0; n-- {
		done, err := d.interp.Step()
		if err != nil || done {
			d.finish(err)
			return
		}
	}
	d.where()
}

// finish reports the end of the program after err, which may be nil.
func (d *debugger) finish(err error) {
	d.finished = true
	if err != nil {
		fmt.Fprintf(d.out, "error: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "program finished after %d instructions\n", d.interp.Executed())
}

func (d *debugger) top() *vm.Frame {
	f := d.interp.CallStack().Top()
	if f == nil {
		fmt.Fprintln(d.out, "no frame")
	}
	return f
}

// where prints the instruction the top frame executes next.
func (d *debugger) where() {
	f := d.interp.CallStack().Top()
	if f == nil {
		return
	}
	fmt.Fprintf(d.out, "[%d] %s %s\n", d.interp.CallStack().Depth(), f, nextInstruction(f))
}

func (d *debugger) stack() {
	frames := d.interp.CallStack().Frames()
	if len(frames) == 0 {
		fmt.Fprintln(d.out, "no frame")
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		fmt.Fprintf(d.out, "#%d %s%s at %04d\n", len(frames)-1-i, f, f.Method.Descriptor, f.Position())
	}
}

func nextInstruction(f *vm.Frame) string {
	idx, ok := f.Method.IndexOf(f.Position())
	if !ok {
		return "<end of method>"
	}
	var pool classfile.ConstantPool
	if f.Class != nil {
		pool = f.Class.ConstantPool
	}
	return classfile.DisassembleInstruction(pool, f.Method.Instructions[idx])
}
