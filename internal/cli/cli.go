package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/5g-empower/empower-agent/internal/app"
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

// handlerList collects repeated -h flags.
type handlerList []string

func (h *handlerList) String() string { return strings.Join(*h, ",") }

func (h *handlerList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return errors.New("handler name must not be empty")
	}
	*h = append(*h, v)
	return nil
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("empower-agent", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
empower-agent - A modular packet-processing router.

Usage:
  empower-agent [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to a single .hcl router configuration or a directory of .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	var handlers handlerList
	configFlag := flagSet.String("config", "", "Path to the router configuration file or directory.")
	cFlag := flagSet.String("c", "", "Path to the router configuration (shorthand).")
	threadsFlag := flagSet.Int("threads", 1, "Number of driver threads.")
	strideFlag := flagSet.Bool("stride", true, "Schedule tasks by tickets (stride scheduling).")
	maxDepthFlag := flagSet.Int("max-depth", 256, "Maximum push/pull depth before a packet is dropped.")
	httpPortFlag := flagSet.Int("http-port", 0, "Port for the health, metrics and handler HTTP server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	timeFlag := flagSet.Bool("time", false, "Print the elapsed run time after the router stops.")
	flagSet.Var(&handlers, "h", "Read `element.handler` after the router stops and print it. Repeatable.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args()[1:], " "))}
	}
	slog.Debug("Config path determined.", "path", path)

	if path == "" {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*logLevelFlag)
	if _, err := app.ParseLevel(logLevel); err != nil {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath: path,
		Threads:    *threadsFlag,
		Stride:     *strideFlag,
		MaxDepth:   *maxDepthFlag,
		HTTPPort:   *httpPortFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		Handlers:   handlers,
		Time:       *timeFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
