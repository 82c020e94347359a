package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/chazu/minijvm/bundle"
	"github.com/chazu/minijvm/classfile"
	"github.com/chazu/minijvm/classpath"
	"github.com/chazu/minijvm/vm"
)

var (
	traceFlag = cli.BoolFlag{
		Name:  "trace",
		Usage: "log every executed instruction to stderr",
	}
	maxDepthFlag = cli.IntFlag{
		Name:  "max-depth",
		Usage: "maximum call stack depth",
	}
	outputFlag = cli.StringFlag{
		Name:  "output, o",
		Usage: "output file: .mjb bundle or .db/.sqlite class database",
	}

	runCommand = cli.Command{
		Action:    runMain,
		Name:      "run",
		Usage:     "Run the main method of a class",
		ArgsUsage: "<MainClass> [args...]",
		Flags:     []cli.Flag{classpathFlag, traceFlag, maxDepthFlag},
	}
	disasmCommand = cli.Command{
		Action:    disasm,
		Name:      "disasm",
		Usage:     "Print the bytecode of a class",
		ArgsUsage: "<Class> [method]",
		Flags:     []cli.Flag{classpathFlag},
	}
	packCommand = cli.Command{
		Action:    pack,
		Name:      "pack",
		Usage:     "Package classes and everything they call into a bundle or class database",
		ArgsUsage: "<Class>...",
		Flags:     []cli.Flag{classpathFlag, outputFlag},
		Description: `
The pack command follows class references from the named classes and stores
every class the classpath can resolve. References it cannot resolve, such as
JDK classes, are left out. The first class becomes the bundle's main class.
`,
	}
)

// newInterpreter creates an interpreter configured from the manifest and
// the run flags.
func newInterpreter(ctx *cli.Context, classes vm.ClassProvider) *vm.Interpreter {
	interp := vm.NewInterpreter(classes, os.Stdout)
	if project.Run.MaxDepth > 0 {
		interp.MaxDepth = project.Run.MaxDepth
	}
	if ctx.IsSet(maxDepthFlag.Name) {
		interp.MaxDepth = ctx.Int(maxDepthFlag.Name)
	}
	if project.Run.Trace || ctx.Bool(traceFlag.Name) {
		interp.Trace = os.Stderr
	}
	return interp
}

func runMain(ctx *cli.Context) error {
	path, classes, err := openClasspath(ctx)
	if err != nil {
		return err
	}
	defer path.Close()
	className, args, err := mainClass(ctx, path)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newInterpreter(ctx, classes).Boot(runCtx, className, args)
}

func disasm(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("disasm: class name required")
	}
	path, classes, err := openClasspath(ctx)
	if err != nil {
		return err
	}
	defer path.Close()

	c, err := classes.LoadClass(ctx.Args().First())
	if err != nil {
		return err
	}
	if name := ctx.Args().Get(1); name != "" {
		m, ok := c.Method(name)
		if !ok {
			return fmt.Errorf("disasm: %s has no method %s", c.Name, name)
		}
		fmt.Print(classfile.DisassembleMethod(c.ConstantPool, m))
		return nil
	}
	fmt.Print(classfile.Disassemble(c))
	return nil
}

func pack(ctx *cli.Context) error {
	out := ctx.String("output")
	if out == "" {
		return fmt.Errorf("pack: --output is required")
	}
	names := []string(ctx.Args())
	if len(names) == 0 {
		if project.Project.Main == "" {
			return fmt.Errorf("pack: no classes given")
		}
		names = []string{project.Project.Main}
	}

	path, classes, err := openClasspath(ctx)
	if err != nil {
		return err
	}
	defer path.Close()

	closure, err := classpath.Closure(classes, names...)
	if err != nil {
		return err
	}
	if err := writePackage(out, names[0], closure); err != nil {
		return err
	}
	fmt.Printf("packed %d classes into %s\n", len(closure), out)
	return nil
}

// writePackage stores classes in the format the extension of out selects.
func writePackage(out, mainName string, classes []*classfile.Class) error {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return fmt.Errorf("pack: %s is a directory", out)
	}
	switch ext := strings.ToLower(filepath.Ext(out)); ext {
	case ".db", ".sqlite":
		return classpath.WriteSQLite(out, classes)
	case bundle.Extension:
		return bundle.Write(out, bundle.New(mainName, classes))
	default:
		return fmt.Errorf("pack: unsupported output format %q (want %s, .db or .sqlite)", ext, bundle.Extension)
	}
}
