package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/babago/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("babago", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
BabaGo - A directive template engine with embedded JavaScript.

Usage:
  babago [options] [TEMPLATE]

Arguments:
  TEMPLATE
    Name of the template to render to standard output.

Examples:
  babago -templates site/ -data page.json page
  babago -templates site/ -bundle-out site.bundle
  babago -bundle site.bundle -serve-port 8080

Options:
`)
		flagSet.PrintDefaults()
	}

	templatesFlag := flagSet.String("templates", "", "Path to a .hcl manifest or a directory of manifests.")
	tFlag := flagSet.String("t", "", "Path to a .hcl manifest or a directory of manifests (shorthand).")
	dataFlag := flagSet.String("data", "", "Path to a .json or .hcl file with the render data.")
	bundleFlag := flagSet.String("bundle", "", "Path to a precompiled template bundle to load.")
	bundleOutFlag := flagSet.String("bundle-out", "", "Write every loaded template, compiled, to this bundle file.")
	baseURLFlag := flagSet.String("base-url", "", "Fetch missing templates, scripts and styles from this URL.")
	fetchTimeoutFlag := flagSet.Duration("fetch-timeout", 30*time.Second, "Timeout for each HTTP fetch.")
	listFlag := flagSet.Bool("list", false, "List templates and their requirements.")
	servePortFlag := flagSet.Int("serve-port", 0, "Port for the HTTP render server. 0 is disabled.")
	concurrencyFlag := flagSet.Int("concurrency", 8, "Maximum number of concurrent fetches.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	templates := *templatesFlag
	if templates == "" {
		templates = *tFlag
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one template name, got %d", flagSet.NArg())}
	}
	name := flagSet.Arg(0)

	if templates == "" && *bundleFlag == "" && *baseURLFlag == "" {
		slog.Debug("No template source provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		TemplatesPath: templates,
		BundlePath:    *bundleFlag,
		BundleOut:     *bundleOutFlag,
		Template:      name,
		DataPath:      *dataFlag,
		List:          *listFlag,
		BaseURL:       *baseURLFlag,
		FetchTimeout:  *fetchTimeoutFlag,
		Concurrency:   *concurrencyFlag,
		ServePort:     *servePortFlag,
		LogFormat:     logFormat,
		LogLevel:      logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
