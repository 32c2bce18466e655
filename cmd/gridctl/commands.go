package main

import (
	"budget-grid/auth"
	"budget-grid/bootstrap"
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"budget-grid/infrastructure/grpc/client"
	"budget-grid/internal"
	"budget-grid/ledger"
	"budget-grid/projection"
	"budget-grid/runtime"
	"budget-grid/runtime/workers"
	"budget-grid/sink"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type connector func(ctx context.Context) (contract.AccountMap, func(), error)

type app struct {
	config  internal.ClientConfig
	log     *slog.Logger
	out     io.Writer
	connect connector
	probe   func(ctx context.Context, address string) (string, error)
}

func newApp(config internal.ClientConfig, log *slog.Logger, out io.Writer) *app {
	a := &app{config: config, log: log, out: out}
	a.connect = a.dial
	a.probe = func(ctx context.Context, address string) (string, error) {
		return client.Probe(ctx, address)
	}
	return a
}

// dial discovers the members and connects to the first healthy one.
func (a *app) dial(ctx context.Context) (contract.AccountMap, func(), error) {
	discoverer, err := a.discoverer()
	if err != nil {
		return nil, nil, err
	}
	addresses, err := discoverer.Discover(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery failed: %w", err)
	}
	creds := auth.GroupCredentials{Name: a.config.GroupName, Password: a.config.GroupPassword}
	remote, err := client.Connect(ctx, a.log, addresses, creds, uint(a.config.ConnectAttempts))
	if err != nil {
		return nil, nil, err
	}
	return remote, func() { _ = remote.Close() }, nil
}

func (a *app) discoverer() (contract.Discoverer, error) {
	if a.config.Discovery == "ec2" {
		return bootstrap.NewEC2Discoverer(a.log, a.config.EC2Region, a.config.EC2Profile, a.config.EC2Group, a.config.Port)
	}
	return bootstrap.NewStaticDiscoverer(a.config.MemberList(), a.config.Port)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "gridctl",
		Short:         "Budget accounts on the data grid",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.AddCommand(
		a.newAddMoneyCmd(),
		a.newContinuousSpendCmd(),
		a.newListAccountsCmd(),
		a.newListMembersCmd(),
		a.newListenCmd(),
		a.newRemoveAccountCmd(),
	)
	return root
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err: err}
		}
		return nil
	}
}

func (a *app) newAddMoneyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add-money <account_id> <amount>",
		Short:   "Adds amount to the account, creating it when needed",
		Example: "  gridctl add-money acct1 100",
		Args:    exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := domain.AccountID(args[0])
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return usageError{err: fmt.Errorf("amount %q is not a number", args[1])}
			}
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()

			balance, err := ledger.NewMutator(a.log, accounts, a.config.LockTimeout).ApplyDelta(cmd.Context(), id, amount)
			if err != nil {
				if stderrors.Is(err, errors.ErrInvalidArgument) {
					return usageError{err: err}
				}
				return err
			}
			fmt.Fprintf(a.out, "Added %s to account %s\n", amount, id)
			fmt.Fprintf(a.out, "Balance: %s\n", balance)
			return nil
		},
	}
}

func (a *app) newContinuousSpendCmd() *cobra.Command {
	var workerCount int
	cmd := &cobra.Command{
		Use:   "continuous-spend <account_id>",
		Short: "Withdraws random amounts from concurrent workers until the account is empty",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workerCount <= 0 {
				return usageError{err: fmt.Errorf("workers must be positive, got %d", workerCount)}
			}
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			telemetry := make(chan event.Event, workerCount*4)
			counter := event.NewCounter()
			go func() {
				_ = workers.NewTelemetryWorker(a.log, telemetry, []event.Handler{
					event.NewSpendStoppedHandler(a.log),
					event.NewWorkerRestartedHandler(a.log, counter),
				}).Run(ctx)
			}()

			harness := runtime.NewSpendHarness(a.log, ledger.NewMutator(a.log, accounts, a.config.LockTimeout), runtime.SpendConfig{
				AccountID:       domain.AccountID(args[0]),
				Workers:         workerCount,
				Timeout:         a.config.SpendTimeout,
				RestartInterval: a.config.RestartInterval,
				Retry:           workers.RetryPolicy{Attempts: uint(a.config.RetryAttempts), Delay: a.config.RetryDelay},
				Amount:          workers.RandomAmount,
			}, telemetry)
			report, err := harness.Run(ctx)
			renderSpendReport(a.out, report, counter.Get(event.WorkerRestartedType))
			if err != nil {
				return err
			}
			if failures := report.Failures(); len(failures) > 0 {
				return fmt.Errorf("%d spender(s) failed, first: %w", len(failures), failures[0].Err)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workerCount, "workers", "w", a.config.SpendWorkers, "number of concurrent spenders")
	return cmd
}

func (a *app) newListAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-accounts",
		Short: "Prints every account of the grid",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()
			values, err := accounts.Values(cmd.Context())
			if err != nil {
				return err
			}
			domain.SortAccounts(values)
			renderAccounts(a.out, values)
			return nil
		},
	}
}

func (a *app) newListMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-members",
		Short: "Prints the grid members and their health",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()
			members, err := accounts.Members(cmd.Context())
			if err != nil {
				return err
			}
			health := make([]string, len(members))
			for i, m := range members {
				status, err := a.probe(cmd.Context(), m.Address)
				if err != nil {
					a.log.Warn("Member probe failed", "member", m.Address, "error", err)
					status = "UNREACHABLE"
				}
				health[i] = status
			}
			renderMembers(a.out, members, health)
			return nil
		},
	}
}

func (a *app) newListenCmd() *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Prints every change of the accounts until interrupted",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			overflow, err := domain.ParseOverflowPolicy(a.config.Overflow)
			if err != nil {
				return usageError{err: err}
			}
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()

			// The projection goes first so a printed change is always part of the summary.
			var sinks []contract.ChangeSink
			balances := projection.NewBalances()
			if summary {
				sinks = append(sinks, balances)
			}
			sinks = append(sinks, sink.NewConsoleSink(a.out, a.config.Colours))
			if brokers := a.config.KafkaBrokerList(); len(brokers) > 0 {
				kafkaSink := sink.NewKafkaSink(sink.NewKafkaWriter(brokers, a.config.KafkaTopic))
				defer func() { _ = kafkaSink.Close() }()
				sinks = append(sinks, sink.NewDedupSink(kafkaSink))
			}

			listener := runtime.NewListener(a.log, accounts, runtime.ListenConfig{
				Subscribe: domain.SubscribeOptions{
					IncludePrevious: true,
					QueueSize:       a.config.QueueSize,
					Overflow:        overflow,
				},
				SinkTimeout:          a.config.SinkTimeout,
				RestartInterval:      a.config.RestartInterval,
				MetricInterval:       a.config.MetricInterval,
				LowCapacityThreshold: a.config.LowCapacityThreshold,
			}, sinks...)
			listener.Run(cmd.Context())

			if summary {
				renderSummary(a.out, balances, listener.Restarts())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print the last balance of every account on exit")
	return cmd
}

func (a *app) newRemoveAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-account <account_id>",
		Short: "Deletes the account",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, closeGrid, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeGrid()
			removed, err := ledger.NewMutator(a.log, accounts, a.config.LockTimeout).Remove(cmd.Context(), domain.AccountID(args[0]))
			if err != nil {
				if stderrors.Is(err, errors.ErrInvalidArgument) {
					return usageError{err: err}
				}
				return err
			}
			fmt.Fprintf(a.out, "Removed account %s with balance %s\n", removed.ID, removed.Balance)
			return nil
		},
	}
}
