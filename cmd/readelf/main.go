// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command readelf displays the contents of ELF object files.
//
// Usage:
//
//	readelf [flags] file...
//
// At least one display flag is required. With more than one file, each
// file's output is preceded by its name, and a file that fails to
// decode is reported without stopping the others.
package main

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/aclements/go-readelf/obj"
)

// errFailed is returned after at least one file failed. The failures
// themselves have already been logged.
var errFailed = errors.New("one or more files could not be displayed")

type options struct {
	all            bool
	fileHeader     bool
	sectionHeaders bool
	programHeaders bool
	syms           bool
	dynSyms        bool
	relocs         bool
	dynamic        bool
	disassemble    string
	syntax         string
	color          string
	logLevel       string
}

func (o *options) any() bool {
	return o.fileHeader || o.sectionHeaders || o.programHeaders || o.syms || o.dynSyms ||
		o.relocs || o.dynamic || o.disassemble != ""
}

func main() {
	cmd := newRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "readelf:", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	o := &options{
		syntax:   "gnu",
		color:    "auto",
		logLevel: "warn",
	}

	cmd := &cobra.Command{
		Use:           "readelf [flags] file...",
		Short:         "Display information about ELF files",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.all {
				o.fileHeader, o.sectionHeaders, o.programHeaders = true, true, true
				o.syms, o.dynSyms, o.relocs, o.dynamic = true, true, true, true
			}
			if !o.any() {
				return fmt.Errorf("nothing to do: pass at least one display flag (see --help)")
			}
			if err := setColor(o.color); err != nil {
				return err
			}
			if o.syntax != "gnu" && o.syntax != "go" {
				return fmt.Errorf("invalid --syntax %q: want gnu or go", o.syntax)
			}
			logger, err := newLogger(stderr, o.logLevel)
			if err != nil {
				return err
			}
			return run(stdout, logger, o, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	// -h is --file-header, as in binutils, so help has no shorthand.
	f.Bool("help", false, "Display this help")
	f.BoolVarP(&o.all, "all", "a", false, "Equivalent to -h -S -l -s --dyn-syms -r -d")
	f.BoolVarP(&o.fileHeader, "file-header", "h", false, "Display the ELF file header")
	f.BoolVarP(&o.sectionHeaders, "section-headers", "S", false, "Display the section headers")
	f.BoolVarP(&o.programHeaders, "program-headers", "l", false, "Display the program headers and section to segment mapping")
	f.BoolVarP(&o.syms, "syms", "s", false, "Display the symbol tables")
	f.BoolVar(&o.dynSyms, "dyn-syms", false, "Display the dynamic symbol table")
	f.BoolVarP(&o.relocs, "relocs", "r", false, "Display the relocations")
	f.BoolVarP(&o.dynamic, "dynamic", "d", false, "Display the dynamic section")
	f.StringVar(&o.disassemble, "disassemble", "", "Disassemble the named function")
	f.StringVar(&o.syntax, "syntax", o.syntax, "Assembly syntax for --disassemble: gnu or go")
	f.StringVar(&o.color, "color", o.color, "Colorize output: auto, always, or never")
	f.StringVar(&o.logLevel, "log.level", o.logLevel, "Log level: debug, info, warn, or error")

	return cmd
}

func setColor(mode string) error {
	switch mode {
	case "auto":
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		return fmt.Errorf("invalid --color %q: want auto, always, or never", mode)
	}
	return nil
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		return nil, fmt.Errorf("invalid --log.level %q: want debug, info, warn, or error", lvl)
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC), nil
}

func run(w io.Writer, logger log.Logger, o *options, paths []string) error {
	failed := false
	for _, path := range paths {
		if len(paths) > 1 {
			fmt.Fprintf(w, "\nFile: %s\n", path)
		}
		if err := display(w, log.With(logger, "file", path), o, path); err != nil {
			level.Error(logger).Log("msg", "cannot display file", "file", path, "err", err)
			failed = true
		}
	}
	if failed {
		return errFailed
	}
	return nil
}

func display(w io.Writer, logger log.Logger, o *options, path string) error {
	f, err := obj.OpenFile(path, obj.WithLogger(logger))
	if err != nil {
		return err
	}
	defer f.Close()

	p := &printer{w: w, f: f, logger: logger}
	steps := []struct {
		on bool
		fn func() error
	}{
		{o.fileHeader, p.fileHeader},
		{o.sectionHeaders, p.sectionHeaders},
		{o.programHeaders, p.programHeaders},
		{o.dynamic, p.dynamic},
		{o.relocs, p.relocs},
		{o.syms || o.dynSyms, func() error {
			// Like readelf, -s covers the dynamic symbols too.
			if o.syms {
				return p.symbols(elf.SHT_DYNSYM, elf.SHT_SYMTAB)
			}
			return p.symbols(elf.SHT_DYNSYM)
		}},
		{o.disassemble != "", func() error { return p.disassemble(o.disassemble, o.syntax) }},
	}
	var errs *multierror.Error
	for _, s := range steps {
		if !s.on {
			continue
		}
		if err := s.fn(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	// Tables that failed to decode make the output incomplete even
	// when every step printed something.
	if err := f.Warnings(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("incomplete file: %w", err))
	}
	return errs.ErrorOrNil()
}
