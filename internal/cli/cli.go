package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vk/fragmesh/internal/app"
	"github.com/vk/fragmesh/internal/comm"
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

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("fragmesh-executor", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
fragmesh-executor - One worker of a distributed graph processing group.

Usage:
  fragmesh-executor --config <path> [options] <flagToken> <rank>

Arguments:
  flagToken
    Group binding token, e.g. "graph.o00000000000000ff". It must carry
    the same object id as the config file names.
  rank
    This worker's rank within its group.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the worker config file.")
	planFlag := flagSet.String("plan", "", "Path to a plan file or directory, overriding the config's plan_path.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if len(args) == 0 {
		slog.Debug("No arguments provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	if flagSet.NArg() != 2 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected 2 positional arguments (flagToken, rank), got %d", flagSet.NArg())}
	}

	token := flagSet.Arg(0)
	objectID, err := comm.ParseFlagToken(token)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Flag token parsed.", "objectID", objectID)

	rank, err := strconv.Atoi(flagSet.Arg(1))
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("rank %q is not a number", flagSet.Arg(1))}
	}
	if rank < 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("rank %d must not be negative", rank)}
	}

	if *configFlag == "" {
		return nil, false, &ExitError{Code: 2, Message: "--config is required"}
	}

	// Empty means "defer to the config file"; anything else must be valid.
	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "" && logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath: *configFlag,
		ObjectID:   objectID,
		Rank:       rank,
		PlanPath:   *planFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
