package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/davecgh/go-spew/spew"

	"github.com/GriffinCanCode/tiger-backend/pkg/config"
	"github.com/GriffinCanCode/tiger-backend/pkg/ir"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

var spewConfig = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

// observer returns the stage hook printing the stages named in Dump.Stages
func (c *Compiler) observer() func(string, *ir.Program) {
	if len(c.cfg.Dump.Stages) == 0 {
		return nil
	}
	return func(stage string, prog *ir.Program) {
		if !slices.Contains(c.cfg.Dump.Stages, stage) {
			return
		}
		fmt.Fprintf(c.Out, "# after %s\n", stage)
		c.writeProgram(prog)
	}
}

func (c *Compiler) writeProgram(prog *ir.Program) {
	if c.cfg.Dump.Format == config.FormatSpew {
		spewConfig.Fdump(c.Out, prog)
		return
	}
	ir.Fprint(c.Out, prog)
}

// dumpProgram writes the diagnostics the configuration asks for about the
// optimized CFG
func (c *Compiler) dumpProgram(prog *ir.Program) error {
	if c.cfg.Dump.CFG {
		c.writeProgram(prog)
	}
	if c.cfg.Dump.Stats {
		ir.WriteSizeTable(c.Out, ir.ComputeSize(prog))
	}
	if len(c.cfg.Visualize.Functions) > 0 {
		if _, err := c.WriteDots(prog); err != nil {
			return err
		}
	}
	return nil
}

// WriteDots writes a Graphviz file for each function named in
// Visualize.Functions, or for every function when the list holds "all".
// It returns the paths written.
func (c *Compiler) WriteDots(prog *ir.Program) ([]string, error) {
	dir := c.cfg.Visualize.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	all := slices.Contains(c.cfg.Visualize.Functions, "all")
	var paths []string
	for _, fn := range prog.Functions {
		if !all && !slices.Contains(c.cfg.Visualize.Functions, fn.QualifiedName()) {
			continue
		}
		path := filepath.Join(dir, ir.DotName(fn)+".dot")
		if err := writeDot(path, fn); err != nil {
			return paths, err
		}
		logger.Debug("Wrote CFG graph", "function", fn.QualifiedName(), "path", path)
		paths = append(paths, path)
	}
	return paths, nil
}

func writeDot(path string, fn *ir.Function) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ir.WriteDot(f, fn); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
