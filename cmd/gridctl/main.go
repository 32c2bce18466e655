// Command gridctl drives budget accounts stored in the grid.
package main

import (
	"budget-grid/internal"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the shell or the CI job running the demo.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridctl: %v\n", err)
	}
	os.Exit(code)
}

// run keeps main free of os.Exit so deferred cleanups (grid connection, Kafka writer) always run.
func run(args []string) (int, error) {
	config, err := internal.LoadClientConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(newApp(config, logger, os.Stdout))
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if isUsage(err) {
			fmt.Fprintln(os.Stderr, root.UsageString())
			return exitConfig, err
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

// usageError marks missing or malformed arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }

func (e usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var u usageError
	return stderrors.As(err, &u) || strings.HasPrefix(err.Error(), "unknown command")
}
