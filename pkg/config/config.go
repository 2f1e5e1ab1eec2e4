// Package config holds the tigerc settings: defaults, overridden by a TOML
// file, then by TIGERC_* environment variables, then by command-line flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/naoina/toml"
	"github.com/xyproto/env/v2"

	"github.com/GriffinCanCode/tiger-backend/pkg/codegen/regalloc"
	"github.com/GriffinCanCode/tiger-backend/pkg/logger"
)

// Dump formats
const (
	FormatText = "text"
	FormatSpew = "spew"
)

// MaxLevel is the highest optimization level
const MaxLevel = 2

type Optimize struct {
	Level int  // 0 none, 1 dead code and constant propagation, 2 adds CSE
	CSE   bool // run CSE regardless of Level
}

type Dump struct {
	CFG    bool     // print the optimized CFG
	Stages []string `toml:",omitempty"` // print the CFG after these pipeline stages
	Format string   // "text" or "spew"
	Stats  bool     // print the block and statement counts
	Layout bool     // print class sizes and method offsets
}

type Visualize struct {
	Functions []string `toml:",omitempty"` // Class.method names to export as Graphviz
	Dir       string
}

type RegAlloc struct {
	Strategy string // "linearscan" or "stack"
}

type Log struct {
	Level     string
	Format    string
	File      string `toml:",omitempty"`
	AddSource bool
}

// Config is the whole tigerc configuration
type Config struct {
	Optimize  Optimize
	Dump      Dump
	Visualize Visualize
	RegAlloc  RegAlloc
	Log       Log
}

// Defaults are used for every setting not given elsewhere
var Defaults = Config{
	Optimize:  Optimize{Level: 1},
	Dump:      Dump{Format: FormatText},
	Visualize: Visualize{Dir: "."},
	RegAlloc:  RegAlloc{Strategy: regalloc.StrategyLinearScan},
	Log:       Log{Level: "warn", Format: "text"},
}

// Environment variables
const (
	EnvAllocator = "TIGERC_ALLOCATOR"
	EnvOptLevel  = "TIGERC_OPT_LEVEL"
	EnvCSE       = "TIGERC_CSE"
	EnvLogLevel  = "TIGERC_LOG_LEVEL"
	EnvLogFormat = "TIGERC_LOG_FORMAT"
	EnvDumpCFG   = "TIGERC_DUMP_CFG"
)

// These settings make the TOML keys match the Go field names.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load reads a TOML file over cfg
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = Decode(bufio.NewReader(f), cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Decode reads TOML from r over cfg
func Decode(r io.Reader, cfg *Config) error {
	return tomlSettings.NewDecoder(r).Decode(cfg)
}

// Write encodes cfg as TOML
func Write(w io.Writer, cfg *Config) error {
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// ApplyEnv overrides cfg with the TIGERC_* variables that are set
func (c *Config) ApplyEnv() {
	c.RegAlloc.Strategy = env.Str(EnvAllocator, c.RegAlloc.Strategy)
	c.Optimize.Level = env.Int(EnvOptLevel, c.Optimize.Level)
	if env.Has(EnvCSE) {
		c.Optimize.CSE = env.Bool(EnvCSE)
	}
	c.Log.Level = env.Str(EnvLogLevel, c.Log.Level)
	c.Log.Format = env.Str(EnvLogFormat, c.Log.Format)
	if env.Has(EnvDumpCFG) {
		c.Dump.CFG = env.Bool(EnvDumpCFG)
	}
}

// Validate reports every invalid setting
func (c *Config) Validate() error {
	var errs []error
	if c.Optimize.Level < 0 || c.Optimize.Level > MaxLevel {
		errs = append(errs, fmt.Errorf("optimization level %d out of range 0..%d", c.Optimize.Level, MaxLevel))
	}
	switch c.RegAlloc.Strategy {
	case regalloc.StrategyLinearScan, regalloc.StrategyStack:
	default:
		errs = append(errs, fmt.Errorf("unknown allocation strategy %q", c.RegAlloc.Strategy))
	}
	switch c.Dump.Format {
	case FormatText, FormatSpew:
	default:
		errs = append(errs, fmt.Errorf("unknown dump format %q", c.Dump.Format))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// LoggerConfig converts the [Log] section for logger.Init
func (c *Config) LoggerConfig() (logger.Config, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.Config{}, err
	}
	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.Format = strings.ToLower(c.Log.Format)
	cfg.LogFile = c.Log.File
	cfg.AddSource = c.Log.AddSource
	return cfg, nil
}
