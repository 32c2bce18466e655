package server

import (
	"budget-grid/contract"
	"budget-grid/errors"
	"budget-grid/infrastructure/grpc/rpc"
	"budget-grid/wire"
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AccountMapServer exposes the map held by this node to remote clients.
type AccountMapServer struct {
	log      *slog.Logger
	accounts contract.AccountMap
}

var _ rpc.AccountMapServer = (*AccountMapServer)(nil)

func NewAccountMapServer(log *slog.Logger, accounts contract.AccountMap) *AccountMapServer {
	return &AccountMapServer{log: log, accounts: accounts}
}

func (s *AccountMapServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account, found, err := s.accounts.Get(ctx, wire.IDFromRequest(in))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.LookupResponse(account, found))
}

func (s *AccountMapServer) Put(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	lease, account, err := wire.PutFromRequest(in)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	stored, err := s.accounts.Put(ctx, lease, account)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.AccountToStruct(stored))
}

func (s *AccountMapServer) Remove(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	lease, id, err := wire.RemoveFromRequest(in)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	removed, found, err := s.accounts.Remove(ctx, lease, id)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.LookupResponse(removed, found))
}

func (s *AccountMapServer) Values(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	accounts, err := s.accounts.Values(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.AccountsResponse(accounts))
}

// Lock blocks until the lease is granted or the caller's deadline passes.
func (s *AccountMapServer) Lock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	lease, err := s.accounts.Lock(ctx, wire.IDFromRequest(in))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.LeaseToStruct(lease))
}

func (s *AccountMapServer) Unlock(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	lease, err := wire.LeaseFromStruct(in)
	if err != nil {
		return nil, rpc.ToStatus(fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err))
	}
	if err := s.accounts.Unlock(ctx, lease); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return wire.Empty(), nil
}

func (s *AccountMapServer) Members(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	members, err := s.accounts.Members(ctx)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return encoded(wire.MembersResponse(members))
}

// Subscribe forwards the changes of this node until the client disconnects.
// A slow client loses events according to its own overflow policy.
func (s *AccountMapServer) Subscribe(in *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	opts, err := wire.SubscribeFromRequest(in)
	if err != nil {
		return rpc.ToStatus(err)
	}
	sub, err := s.accounts.Subscribe(ctx, opts)
	if err != nil {
		return rpc.ToStatus(err)
	}
	defer sub.Close()
	s.log.Debug("Remote subscriber connected", "queue_size", opts.QueueSize, "overflow", opts.Overflow)

	for change := range sub.Events() {
		msg, err := wire.ChangeToStruct(change)
		if err != nil {
			s.log.Error("Change not encodable", "account_id", change.AccountID, "error", err)
			continue
		}
		if err := stream.SendMsg(msg); err != nil {
			s.log.Warn("Remote subscriber lost", "dropped", sub.Dropped(), "error", err)
			return err
		}
	}
	if ctx.Err() != nil {
		s.log.Debug("Remote subscriber disconnected", "dropped", sub.Dropped())
		return nil
	}
	return rpc.ToStatus(fmt.Errorf("%w: %v", errors.ErrSubscriptionClosed, sub.Err()))
}

func encoded(s *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, rpc.ToStatus(fmt.Errorf("encode response: %w", err))
	}
	return s, nil
}
