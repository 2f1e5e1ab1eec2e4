// Package main implements tigerc, the Tiger backend driver: it reads a CFG
// interchange file, optimizes it and emits register-allocated x64 assembly.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/compiler"
	"github.com/GriffinCanCode/tiger-backend/pkg/config"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

const version = "0.1.0"

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	optFlag = cli.IntFlag{
		Name:  "opt, O",
		Usage: "Optimization level: 0 none, 1 dead code and constant propagation, 2 adds CSE",
		Value: config.Defaults.Optimize.Level,
	}
	cseFlag = cli.BoolFlag{
		Name:  "cse",
		Usage: "Run common subexpression elimination at any level",
	}
	allocatorFlag = cli.StringFlag{
		Name:  "allocator",
		Usage: "Register allocation strategy (linearscan, stack)",
		Value: config.Defaults.RegAlloc.Strategy,
	}
	dumpCFGFlag = cli.BoolFlag{
		Name:  "dump-cfg",
		Usage: "Print the optimized CFG",
	}
	dumpStageFlag = cli.StringSliceFlag{
		Name:  "dump-stage",
		Usage: "Print the CFG after a pipeline stage (unreachable, deadcode, constprop, cse)",
	}
	dumpFormatFlag = cli.StringFlag{
		Name:  "dump-format",
		Usage: "CFG dump format (text, spew)",
		Value: config.Defaults.Dump.Format,
	}
	visualizeFlag = cli.StringSliceFlag{
		Name:  "visualize",
		Usage: "Write a Graphviz file for Class.method (or all)",
	}
	dotDirFlag = cli.StringFlag{
		Name:  "dot-dir",
		Usage: "Directory for Graphviz files",
		Value: config.Defaults.Visualize.Dir,
	}
	logLevelFlag = cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level (debug, info, warn, error)",
		Value: config.Defaults.Log.Level,
	}
	logFormatFlag = cli.StringFlag{
		Name:  "log-format",
		Usage: "Log format (text, json)",
		Value: config.Defaults.Log.Format,
	}
	outputFlag = cli.StringFlag{
		Name:  "output, o",
		Usage: "Write assembly to this file instead of stdout",
	}
)

var cfg config.Config

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "tigerc"
	app.Usage = "Tiger compiler backend: CFG optimizer and x64 register allocator"
	app.Version = version
	app.Flags = []cli.Flag{
		configFileFlag,
		optFlag,
		cseFlag,
		allocatorFlag,
		dumpCFGFlag,
		dumpStageFlag,
		dumpFormatFlag,
		visualizeFlag,
		dotDirFlag,
		logLevelFlag,
		logFormatFlag,
	}
	app.Commands = []cli.Command{
		{
			Name:      "compile",
			Usage:     "Optimize, select and allocate; print x64 assembly",
			ArgsUsage: "<file.json>",
			Flags:     []cli.Flag{outputFlag},
			Action:    compile,
		},
		{
			Name:      "optimize",
			Usage:     "Print the optimized CFG",
			ArgsUsage: "<file.json>",
			Action:    optimize,
		},
		{
			Name:      "stats",
			Usage:     "Print block and statement counts before and after optimization",
			ArgsUsage: "<file.json>",
			Action:    stats,
		},
		{
			Name:      "dot",
			Usage:     "Write Graphviz files of the optimized CFG",
			ArgsUsage: "<file.json>",
			Action:    dot,
		},
		{
			Name:      "layout",
			Usage:     "Print class sizes and vtable offsets",
			ArgsUsage: "<file.json>",
			Action:    layout,
		},
		{
			Name:      "watch",
			Usage:     "Recompile whenever the input changes",
			ArgsUsage: "<file.json>",
			Action:    watch,
		},
		{
			Name:  "version",
			Usage: "Print the version",
			Action: func(ctx *cli.Context) error {
				fmt.Printf("%s %s\n", ctx.App.Name, ctx.App.Version)
				return nil
			},
		},
		{
			Name:   "dumpconfig",
			Usage:  "Print the effective configuration as TOML",
			Action: dumpConfig,
		},
	}
	app.Before = setup
	return app
}

// setup builds the configuration from defaults, the config file, the
// environment and the flags, then starts logging
func setup(ctx *cli.Context) error {
	cfg = config.Defaults
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()

	if ctx.GlobalIsSet("opt") {
		cfg.Optimize.Level = ctx.GlobalInt("opt")
	}
	if ctx.GlobalIsSet(cseFlag.Name) {
		cfg.Optimize.CSE = ctx.GlobalBool(cseFlag.Name)
	}
	if ctx.GlobalIsSet(allocatorFlag.Name) {
		cfg.RegAlloc.Strategy = ctx.GlobalString(allocatorFlag.Name)
	}
	if ctx.GlobalIsSet(dumpCFGFlag.Name) {
		cfg.Dump.CFG = ctx.GlobalBool(dumpCFGFlag.Name)
	}
	if ctx.GlobalIsSet(dumpStageFlag.Name) {
		cfg.Dump.Stages = ctx.GlobalStringSlice(dumpStageFlag.Name)
	}
	if ctx.GlobalIsSet(dumpFormatFlag.Name) {
		cfg.Dump.Format = ctx.GlobalString(dumpFormatFlag.Name)
	}
	if ctx.GlobalIsSet(visualizeFlag.Name) {
		cfg.Visualize.Functions = ctx.GlobalStringSlice(visualizeFlag.Name)
	}
	if ctx.GlobalIsSet(dotDirFlag.Name) {
		cfg.Visualize.Dir = ctx.GlobalString(dotDirFlag.Name)
	}
	if ctx.GlobalIsSet(logLevelFlag.Name) {
		cfg.Log.Level = ctx.GlobalString(logLevelFlag.Name)
	}
	if ctx.GlobalIsSet(logFormatFlag.Name) {
		cfg.Log.Format = ctx.GlobalString(logFormatFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	if err := logger.Init(lc); err != nil {
		return err
	}
	logger.LogCompilerStart(os.Args)
	return nil
}

func inputFile(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", fmt.Errorf("%s expects exactly one input file", ctx.Command.Name)
	}
	return ctx.Args().First(), nil
}

func readInput(ctx *cli.Context) (*ir.Program, error) {
	file, err := inputFile(ctx)
	if err != nil {
		return nil, err
	}
	return compiler.ReadProgram(file)
}

func compile(ctx *cli.Context) error {
	file, err := inputFile(ctx)
	if err != nil {
		return err
	}
	out, err := compiler.New(cfg, os.Stderr).CompileFile(file)
	if err != nil {
		return err
	}

	if path := ctx.String("output"); path != "" {
		return writeAsm(path, out.Allocated)
	}
	return x64.Fprint(os.Stdout, out.Allocated)
}

func writeAsm(path string, prog *x64.Program) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := x64.Fprint(f, prog); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func optimize(ctx *cli.Context) error {
	prog, err := readInput(ctx)
	if err != nil {
		return err
	}
	out, err := compiler.New(cfg, os.Stdout).Optimize(prog)
	if err != nil {
		return err
	}
	ir.Fprint(os.Stdout, out)
	return nil
}

func stats(ctx *cli.Context) error {
	prog, err := readInput(ctx)
	if err != nil {
		return err
	}
	out, err := compiler.New(cfg, os.Stdout).Optimize(prog)
	if err != nil {
		return err
	}
	fmt.Println("input:")
	ir.WriteSizeTable(os.Stdout, ir.ComputeSize(prog))
	fmt.Printf("optimized (level %d):\n", cfg.Optimize.Level)
	ir.WriteSizeTable(os.Stdout, ir.ComputeSize(out))
	return nil
}

func dot(ctx *cli.Context) error {
	prog, err := readInput(ctx)
	if err != nil {
		return err
	}
	if len(cfg.Visualize.Functions) == 0 {
		cfg.Visualize.Functions = []string{"all"}
	}
	c := compiler.New(cfg, os.Stdout)
	out, err := c.Optimize(prog)
	if err != nil {
		return err
	}
	paths, err := c.WriteDots(out)
	for _, p := range paths {
		fmt.Println(p)
	}
	return err
}

func layout(ctx *cli.Context) error {
	prog, err := readInput(ctx)
	if err != nil {
		return err
	}
	x64.NewLayout(prog).WriteTable(os.Stdout)
	return nil
}

func watch(ctx *cli.Context) error {
	file, err := inputFile(ctx)
	if err != nil {
		return err
	}
	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ok := color.New(color.FgGreen)
	fail := color.New(color.FgYellow)
	err = compiler.Watch(sigctx, file, func() error {
		out, err := compiler.New(cfg, os.Stderr).CompileFile(file)
		if err != nil {
			return err
		}
		if err := x64.Fprint(os.Stdout, out.Allocated); err != nil {
			return err
		}
		ok.Fprintf(os.Stderr, "compiled %s: %d functions\n", file, len(out.Allocated.Functions))
		return nil
	}, func(err error) {
		fail.Fprintf(os.Stderr, "%s: %v\n", file, err)
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

func dumpConfig(ctx *cli.Context) error {
	return config.Write(os.Stdout, &cfg)
}
