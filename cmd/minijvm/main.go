// minijvm runs, disassembles and packages JVM class files.
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/chazu/minijvm/classpath"
	"github.com/chazu/minijvm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var (
	classpathFlag = cli.StringFlag{
		Name:  "classpath, cp",
		Usage: "class search path: directories, .jar, .mjb and .db files separated by the OS list separator",
	}
	verboseFlag = cli.IntFlag{
		Name:  "verbose",
		Usage: "log verbosity (0 quiet, 1 info, 2 debug)",
	}
	logFileFlag = cli.StringFlag{
		Name:  "log-file",
		Usage: "write logs to this file instead of stderr",
	}

	// project is the minijvm.toml found from the working directory, or
	// defaults when there is none.
	project *manifest.Manifest
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "minijvm"
	app.Usage = "a minimal JVM bytecode interpreter"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{verboseFlag, logFileFlag}
	app.Commands = []cli.Command{
		runCommand,
		disasmCommand,
		packCommand,
		debugCommand,
	}
	app.Before = setup
	return app
}

// setup loads the project manifest and configures logging. Flags override
// the manifest.
func setup(ctx *cli.Context) error {
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return err
	}
	if m == nil {
		if m, err = manifest.Default("."); err != nil {
			return err
		}
	}
	project = m

	verbosity := m.Log.Verbosity
	if ctx.GlobalIsSet(verboseFlag.Name) {
		verbosity = ctx.GlobalInt(verboseFlag.Name)
	}
	logFile := m.LogFile()
	if f := ctx.GlobalString(logFileFlag.Name); f != "" {
		logFile = &f
	}
	commonlog.Configure(verbosity, logFile)
	return nil
}

// openClasspath opens the roots named by --classpath, or the manifest's
// roots, behind an LRU cache.
func openClasspath(ctx *cli.Context) (*classpath.Path, *classpath.Cached, error) {
	entries := project.RootPaths()
	if cp := ctx.String("classpath"); cp != "" {
		entries = classpath.Split(cp)
	}
	path, err := classpath.Open(entries)
	if err != nil {
		return nil, nil, err
	}
	cached, err := classpath.NewCached(path, project.Classpath.CacheSize)
	if err != nil {
		path.Close()
		return nil, nil, err
	}
	return path, cached, nil
}

// mainClass returns the first argument and the remaining arguments. Without
// arguments it falls back to the manifest's main class, then to the main
// class recorded in the first bundle on the classpath.
func mainClass(ctx *cli.Context, path *classpath.Path) (string, []string, error) {
	args := ctx.Args()
	if len(args) > 0 {
		return args.First(), args.Tail(), nil
	}
	if project.Project.Main != "" {
		return project.Project.Main, nil, nil
	}
	if name := bundleMain(path); name != "" {
		return name, nil, nil
	}
	return "", nil, fmt.Errorf("%s: no main class given and none set in %s or a bundle", ctx.Command.Name, manifest.FileName)
}

// bundleMain returns the main class of the first .mjb root that has one.
func bundleMain(path *classpath.Path) string {
	for _, r := range path.Roots() {
		if b, ok := r.(*classpath.Bundle); ok && b.Main() != "" {
			return b.Main()
		}
	}
	return ""
}
