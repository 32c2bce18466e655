package client

import (
	"budget-grid/auth"
	"budget-grid/contract"
	"budget-grid/domain"
	"budget-grid/errors"
	"budget-grid/grid"
	"budget-grid/infrastructure/grpc/rpc"
	"budget-grid/wire"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultConnectAttempts = 3
	probeTimeout           = 3 * time.Second
)

// RemoteMap is a contract.AccountMap served by a grid node over gRPC.
type RemoteMap struct {
	log     *slog.Logger
	conn    *grpc.ClientConn
	address string
}

var _ contract.AccountMap = (*RemoteMap)(nil)

// Connect joins the grid through the first member answering its health check.
// Every address is tried on each attempt; attempts are spaced with backoff.
func Connect(ctx context.Context, log *slog.Logger, addresses []string, creds auth.GroupCredentials, attempts uint, opts ...grpc.DialOption) (*RemoteMap, error) {
	if len(addresses) == 0 {
		return nil, errors.ErrNoMembers
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithPerRPCCredentials(creds),
	}, opts...)

	var remote *RemoteMap
	err := retry.Do(func() error {
		var errs []error
		for _, address := range addresses {
			conn, err := grpc.NewClient(address, opts...)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", address, err))
				continue
			}
			if _, err := probe(ctx, conn); err != nil {
				_ = conn.Close()
				errs = append(errs, fmt.Errorf("%s: %w", address, err))
				continue
			}
			remote = &RemoteMap{log: log.With("member", address), conn: conn, address: address}
			return nil
		}
		return fmt.Errorf("%w: %w", errors.ErrGridUnavailable, stderrors.Join(errs...))
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Grid not reachable yet", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to grid", "member", remote.address)
	return remote, nil
}

// Probe reports the health of the member at address.
func Probe(ctx context.Context, address string, opts ...grpc.DialOption) (string, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return probe(ctx, conn)
}

func probe(ctx context.Context, conn *grpc.ClientConn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: rpc.ServiceName})
	if err != nil {
		return "", rpc.FromStatus(ctx, err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return res.GetStatus().String(), fmt.Errorf("%w: member is %s", errors.ErrGridUnavailable, res.GetStatus())
	}
	return res.GetStatus().String(), nil
}

func (r *RemoteMap) Address() string { return r.address }

func (r *RemoteMap) Close() error { return r.conn.Close() }

func (r *RemoteMap) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, rpc.FullMethod(method), in, out); err != nil {
		return nil, rpc.FromStatus(ctx, err)
	}
	return out, nil
}

func (r *RemoteMap) Get(ctx context.Context, id domain.AccountID) (domain.Account, bool, error) {
	out, err := r.invoke(ctx, rpc.MethodGet, wire.IDRequest(id))
	if err != nil {
		return domain.Account{}, false, err
	}
	return wire.LookupFromResponse(out)
}

func (r *RemoteMap) Put(ctx context.Context, lease domain.Lease, account domain.Account) (domain.Account, error) {
	in, err := wire.PutRequest(lease, account)
	if err != nil {
		return domain.Account{}, err
	}
	out, err := r.invoke(ctx, rpc.MethodPut, in)
	if err != nil {
		return domain.Account{}, err
	}
	return wire.AccountFromStruct(out)
}

func (r *RemoteMap) Remove(ctx context.Context, lease domain.Lease, id domain.AccountID) (domain.Account, bool, error) {
	in, err := wire.RemoveRequest(lease, id)
	if err != nil {
		return domain.Account{}, false, err
	}
	out, err := r.invoke(ctx, rpc.MethodRemove, in)
	if err != nil {
		return domain.Account{}, false, err
	}
	return wire.LookupFromResponse(out)
}

func (r *RemoteMap) Values(ctx context.Context) ([]domain.Account, error) {
	out, err := r.invoke(ctx, rpc.MethodValues, wire.Empty())
	if err != nil {
		return nil, err
	}
	return wire.AccountsFromResponse(out)
}

// Lock waits on the member holding the key. A lease granted just as ctx
// expires is lost to the caller and stays held until its TTL runs out.
func (r *RemoteMap) Lock(ctx context.Context, id domain.AccountID) (domain.Lease, error) {
	out, err := r.invoke(ctx, rpc.MethodLock, wire.IDRequest(id))
	if err != nil {
		return domain.Lease{}, err
	}
	return wire.LeaseFromStruct(out)
}

func (r *RemoteMap) Unlock(ctx context.Context, lease domain.Lease) error {
	in, err := wire.LeaseToStruct(lease)
	if err != nil {
		return err
	}
	_, err = r.invoke(ctx, rpc.MethodUnlock, in)
	return err
}

func (r *RemoteMap) Members(ctx context.Context) ([]domain.Member, error) {
	out, err := r.invoke(ctx, rpc.MethodMembers, wire.Empty())
	if err != nil {
		return nil, err
	}
	members, err := wire.MembersFromResponse(out)
	if err != nil {
		return nil, err
	}
	domain.SortMembers(members)
	return members, nil
}

// Subscribe opens a change stream. Events are buffered in a local bounded
// queue applying opts.Overflow, so a slow consumer never stalls the stream.
func (r *RemoteMap) Subscribe(ctx context.Context, opts domain.SubscribeOptions) (contract.Subscription, error) {
	opts = opts.Normalize()
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.conn.NewStream(streamCtx, rpc.SubscribeStreamDesc, rpc.FullMethod(rpc.MethodSubscribe))
	if err != nil {
		cancel()
		return nil, rpc.FromStatus(ctx, err)
	}
	if err := stream.SendMsg(wire.SubscribeRequest(opts)); err != nil {
		cancel()
		return nil, rpc.FromStatus(ctx, err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, rpc.FromStatus(ctx, err)
	}
	queue := grid.NewQueue(ctx, opts, cancel)
	go r.receive(streamCtx, stream, queue)
	return queue, nil
}

func (r *RemoteMap) receive(ctx context.Context, stream grpc.ClientStream, queue *grid.Queue) {
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if ctx.Err() != nil {
				queue.CloseWithError(ctx.Err())
				return
			}
			err = rpc.FromStatus(ctx, err)
			if !stderrors.Is(err, errors.ErrGridUnavailable) {
				err = fmt.Errorf("%w: %w", errors.ErrGridUnavailable, err)
			}
			r.log.Warn("Change stream ended", "error", err)
			queue.CloseWithError(err)
			return
		}
		change, err := wire.ChangeFromStruct(msg)
		if err != nil {
			r.log.Warn("Malformed change skipped", "error", err)
			continue
		}
		if !queue.Offer(change) {
			r.log.Debug("Change dropped", "account_id", change.AccountID, "dropped", queue.Dropped())
		}
	}
}
