package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/fragmesh/internal/app"
	"github.com/vk/fragmesh/internal/cli"
)

// main is the entrypoint for one fragmesh executor process.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The app panics on critical startup errors, so we recover here to
	// return a clean error to the user.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	// A worker without a plan holds its group open until signaled.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := app.NewApp(outW, appConfig)
	defer worker.Close()

	return worker.Run(ctx)
}
