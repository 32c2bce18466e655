// Command node runs one member of the budget grid: the account map stored in
// BadgerDB, served over gRPC to gridctl and the other members.
package main

import (
	"budget-grid/auth"
	"budget-grid/domain/event"
	"budget-grid/grid"
	"budget-grid/infrastructure/grpc/server"
	"budget-grid/internal"
	"budget-grid/repositories"
	"budget-grid/runtime/workers"
	"budget-grid/wire"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Node terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps every defer (BadgerDB close, server stop) on the exit path.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadNodeConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	authenticator, err := newAuthenticator(config)
	if err != nil {
		return exitConfig, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if config.DebugPort > 0 {
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect?prefix=%s", config.DebugPort, repositories.AccountPrefix))
		database.StartDebugServer(db, config.DebugPort, "/inspect", AccountMapper)
	}

	// 3. Grid map and its background workers
	accounts := grid.NewLocalMap(logger, repositories.NewAccountRepository(db, logger), config.Advertised(), config.LeaseTTL).
		WithPeers(config.PeerList())
	defer accounts.Close()

	telemetryChan := make(chan event.Event, config.TelemetryBuffer)
	sup := workers.NewSupervisor(logger).
		WithRestartInterval(config.RestartInterval).
		WithTelemetry(telemetryChan)
	sup.Add(
		workers.NewMemberStatsWorker(logger, accounts, config.StatsInterval),
		workers.NewTelemetryWorker(logger, telemetryChan, []event.Handler{
			event.NewWorkerRestartedHandler(logger, event.NewCounter()),
		}),
	)
	if config.EvictionMaxIdle > 0 {
		sup.Add(workers.NewEvictionWorker(logger, accounts, config.EvictionMaxIdle, config.EvictionInterval))
	}

	// 4. gRPC Server Setup
	listener, err := net.Listen("tcp", config.ListenAddress())
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.ListenAddress(), err)
	}
	s, healthServer := server.NewNodeServer(logger, authenticator, accounts)

	errChan := make(chan error, 1)
	supervised := make(chan struct{})
	go func() {
		defer close(supervised)
		sup.Run(ctx)
	}()
	go func() {
		logger.Info("Starting grid node", "address", config.ListenAddress(),
			"member", accounts.Self().Address, "group", config.GroupName, "at", time.Now().UTC())
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errChan:
		code = exitRuntime
	}

	// 6. Graceful shutdown: stop advertising, end the change streams, drain the calls.
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()
	accounts.Close()
	s.GracefulStop()
	sup.Stop()
	<-supervised
	logger.Info("Node stopped cleanly")
	return code, err
}

func newAuthenticator(config internal.NodeConfig) (*auth.Authenticator, error) {
	if config.GroupPasswordHash != "" {
		return auth.NewAuthenticator(config.GroupName, config.GroupPasswordHash), nil
	}
	return auth.NewAuthenticatorFromPassword(config.GroupName, config.GroupPassword)
}

func buildBadgerOpts(config internal.NodeConfig, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if config.InMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// AccountMapper renders stored accounts in the debug inspector.
func AccountMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	account, err := wire.UnmarshalAccount(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}
	row.Type = "ACCOUNT"
	row.Detail = account.String()
	return row
}
