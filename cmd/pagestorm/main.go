// Package main is the entry point for pagestorm.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/pagestorm/internal/app"
	"github.com/dshills/pagestorm/internal/dispatcher"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type cliOptions struct {
	app      app.Options
	commands string
	script   string
	out      string
	serve    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts.app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.commands != "" {
		res, err := application.ApplyBatchFile(opts.commands)
		report(opts.commands, res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.script != "" {
		out, res, err := application.RunScript(ctx, opts.script)
		for _, line := range out.Output {
			fmt.Println(line)
		}
		report(opts.script, res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.serve {
		if err := application.Serve(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if err := save(application, opts.out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// save writes the document to out, or back to where it came from when
// it changed.
func save(application *app.Application, out string) error {
	if out != "" {
		return application.Save(out)
	}
	if !application.IsModified() {
		return nil
	}
	err := application.Save("")
	if errors.Is(err, app.ErrNoFilePath) {
		fmt.Fprintln(os.Stderr, "Warning: document changed but has no path; use -out to save it")
		return nil
	}
	return err
}

func report(name string, res dispatcher.BatchResult) {
	if len(res.Results) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %d of %d commands applied", name, res.Completed, len(res.Results))
	if res.PlaceholdersRemoved > 0 {
		fmt.Fprintf(os.Stderr, ", %d unused pages removed", res.PlaceholdersRemoved)
	}
	fmt.Fprintln(os.Stderr)
	if failed, ok := res.Failed(); ok {
		fmt.Fprintf(os.Stderr, "  %s %s: %v\n", failed.Kind, failed.CommandID, failed.Error)
	}
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool

	flag.StringVar(&opts.app.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.app.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.app.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	flag.StringVar(&opts.app.Addr, "addr", "", "Server listen address; overrides the config")
	flag.BoolVar(&opts.app.ReadOnly, "readonly", false, "Reject every mutation")
	flag.StringVar(&opts.commands, "commands", "", "Command batch file to apply (yaml, json or cbor)")
	flag.StringVar(&opts.script, "script", "", "Lua edit script to run")
	flag.StringVar(&opts.out, "out", "", "Write the document here instead of back to its source")
	flag.BoolVar(&opts.serve, "serve", false, "Serve the HTTP API until interrupted")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pagestorm - paginated document engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pagestorm [options] [document]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pagestorm -commands fix.yaml book.yaml     Apply a batch and save\n")
		fmt.Fprintf(os.Stderr, "  pagestorm -script tidy.lua -out new.json book.yaml\n")
		fmt.Fprintf(os.Stderr, "  pagestorm -serve book.yaml                 Serve the HTTP API\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("pagestorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	switch opts.app.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.app.LogLevel)
		os.Exit(2)
	}

	switch flag.NArg() {
	case 0:
	case 1:
		opts.app.DocumentPath = flag.Arg(0)
	default:
		flag.Usage()
		os.Exit(2)
	}
	return opts
}
