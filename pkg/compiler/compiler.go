// Package compiler drives the backend: validate the CFG, optimize it, select
// x64 instructions, allocate registers and check the result.
package compiler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/x64"
	"github.com/GriffinCanCode/tiger-backend/pkg/config"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
	"github.com/GriffinCanCode/tiger-backend/pkg/optimizer"
)

// Compiler runs the pipeline with one configuration. Dumps go to Out.
type Compiler struct {
	cfg config.Config
	Out io.Writer
}

// New returns a compiler writing dumps to out
func New(cfg config.Config, out io.Writer) *Compiler {
	if out == nil {
		out = os.Stdout
	}
	return &Compiler{cfg: cfg, Out: out}
}

// Output is everything one compilation produced
type Output struct {
	Optimized  *ir.Program
	Layout     *x64.Layout
	Selected   *x64.Program
	Allocated  *x64.Program
	Allocation []*regalloc.Result
}

// ReadProgram decodes a CFG interchange file
func ReadProgram(path string) (*ir.Program, error) {
	logger.LogFileProcessing(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	prog, err := ir.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// recoverInternal turns an *ir.InternalError panic into err. Any other panic
// keeps unwinding.
func recoverInternal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*ir.InternalError)
	if !ok {
		panic(r)
	}
	logger.LogInternalError(ie.Phase, ie.Detail)
	*err = ie
}

// Optimize validates prog and runs the configured optimization pipeline
func (c *Compiler) Optimize(prog *ir.Program) (out *ir.Program, err error) {
	defer func() {
		if err != nil {
			out = nil
		}
	}()
	defer recoverInternal(&err)

	logger.LogPhase("validate")
	if err := ir.Validate(prog); err != nil {
		return nil, fmt.Errorf("invalid CFG: %w", err)
	}
	logger.LogPhaseComplete("validate")

	logger.LogPhase("optimize")
	out = optimizer.Run(prog, optimizer.Options{
		Level:   c.cfg.Optimize.Level,
		CSE:     c.cfg.Optimize.CSE,
		Observe: c.observer(),
	})
	logger.LogPhaseComplete("optimize")
	return out, nil
}

// Compile runs the whole pipeline. An internal error aborts it and no
// partial output is returned.
func (c *Compiler) Compile(prog *ir.Program) (out *Output, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			out = nil
		}
		logger.LogCompilerComplete(err == nil, time.Since(start).String())
	}()
	defer recoverInternal(&err)

	alloc, err := regalloc.New(c.cfg.RegAlloc.Strategy)
	if err != nil {
		return nil, err
	}

	optimized, err := c.Optimize(prog)
	if err != nil {
		return nil, err
	}
	out = &Output{Optimized: optimized}
	if err := c.dumpProgram(optimized); err != nil {
		return nil, err
	}

	logger.LogPhase("select")
	out.Layout = x64.NewLayout(optimized)
	out.Selected = x64.Select(optimized, out.Layout)
	logger.LogPhaseComplete("select")

	logger.LogPhase("allocate")
	out.Allocated, out.Allocation = regalloc.Program(out.Selected, alloc)
	logger.LogPhaseComplete("allocate")

	if err := x64.ValidateProgram(out.Allocated); err != nil {
		return nil, err
	}
	if c.cfg.Dump.Layout {
		out.Layout.WriteTable(c.Out)
	}
	if c.cfg.Dump.Stats {
		regalloc.WriteReport(c.Out, out.Allocation)
	}
	return out, nil
}

// CompileFile reads and compiles one interchange file
func (c *Compiler) CompileFile(path string) (*Output, error) {
	prog, err := ReadProgram(path)
	if err != nil {
		return nil, err
	}
	return c.Compile(prog)
}
