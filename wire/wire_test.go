package wire

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestAccount_KeepsDecimalPrecision(t *testing.T) {
	req := require.New(t)
	// Given a balance that a float64 cannot represent exactly
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	account := domain.Account{
		ID:        "acct1",
		Balance:   decimal.RequireFromString("12345678901234.00000001"),
		Version:   7,
		UpdatedAt: at,
	}

	// When it goes through the storage encoding
	b, err := MarshalAccount(account)
	req.NoError(err)
	decoded, err := UnmarshalAccount(b)
	req.NoError(err)

	// Then nothing is lost
	req.True(account.Balance.Equal(decoded.Balance))
	req.Equal(account.ID, decoded.ID)
	req.Equal(uint64(7), decoded.Version)
	req.True(at.Equal(decoded.UpdatedAt))
}

func TestAccountFromStruct_RejectsMissingID(t *testing.T) {
	req := require.New(t)
	s, err := structpb.NewStruct(map[string]any{"balance": "1"})
	req.NoError(err)
	_, err = AccountFromStruct(s)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	_, err = AccountFromStruct(nil)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestChange_CarriesBothValues(t *testing.T) {
	req := require.New(t)
	old := domain.Account{ID: "acct1", Balance: decimal.NewFromInt(100), Version: 1}
	current := domain.Account{ID: "acct1", Balance: decimal.RequireFromString("99.5"), Version: 2}
	change := event.Change{
		Kind:      event.Updated,
		AccountID: "acct1",
		Value:     &current,
		OldValue:  &old,
		Member:    "127.0.0.1:5701",
		At:        time.Now().UTC(),
	}

	s, err := ChangeToStruct(change)
	req.NoError(err)
	decoded, err := ChangeFromStruct(s)
	req.NoError(err)

	req.Equal(event.Updated, decoded.Kind)
	req.NotNil(decoded.Value)
	req.NotNil(decoded.OldValue)
	req.True(decoded.Value.Balance.Equal(current.Balance))
	req.True(decoded.OldValue.Balance.Equal(old.Balance))
	req.Equal(uint64(2), decoded.Version())
	req.Equal("127.0.0.1:5701", decoded.Member)
}

func TestChange_RemovedHasNoValue(t *testing.T) {
	req := require.New(t)
	old := domain.Account{ID: "acct1", Balance: decimal.NewFromInt(3), Version: 4}
	s, err := ChangeToStruct(event.Change{Kind: event.Removed, AccountID: "acct1", OldValue: &old})
	req.NoError(err)

	decoded, err := ChangeFromStruct(s)
	req.NoError(err)
	req.Nil(decoded.Value)
	req.Equal(uint64(4), decoded.Version())
}

func TestChangeFromStruct_RejectsUnknownKind(t *testing.T) {
	req := require.New(t)
	s, err := structpb.NewStruct(map[string]any{"kind": "MERGED", "account_id": "acct1"})
	req.NoError(err)
	_, err = ChangeFromStruct(s)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestLookup(t *testing.T) {
	req := require.New(t)

	s, err := LookupResponse(domain.Account{}, false)
	req.NoError(err)
	_, found, err := LookupFromResponse(s)
	req.NoError(err)
	req.False(found)

	s, err = LookupResponse(domain.Account{ID: "acct1", Balance: decimal.NewFromInt(10), Version: 1}, true)
	req.NoError(err)
	a, found, err := LookupFromResponse(s)
	req.NoError(err)
	req.True(found)
	req.Equal(domain.AccountID("acct1"), a.ID)
}

func TestPutRequest(t *testing.T) {
	req := require.New(t)
	lease := domain.Lease{AccountID: "acct1", Token: "t-1", Fence: 42, ExpiresAt: time.Now().Add(time.Minute).UTC()}

	s, err := PutRequest(lease, domain.NewAccount("acct1", decimal.NewFromInt(5)))
	req.NoError(err)
	gotLease, gotAccount, err := PutFromRequest(s)
	req.NoError(err)
	req.Equal(lease.Token, gotLease.Token)
	req.Equal(uint64(42), gotLease.Fence)
	req.True(lease.ExpiresAt.Equal(gotLease.ExpiresAt))
	req.True(gotAccount.Balance.Equal(decimal.NewFromInt(5)))

	_, _, err = PutFromRequest(IDRequest("acct1"))
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestSubscribeRequest(t *testing.T) {
	req := require.New(t)

	opts, err := SubscribeFromRequest(Empty())
	req.NoError(err)
	req.Equal(domain.DefaultQueueSize, opts.QueueSize)
	req.Equal(domain.DropOldest, opts.Overflow)

	opts, err = SubscribeFromRequest(SubscribeRequest(domain.SubscribeOptions{IncludePrevious: true, QueueSize: 8, Overflow: domain.DropNewest}))
	req.NoError(err)
	req.True(opts.IncludePrevious)
	req.Equal(8, opts.QueueSize)
	req.Equal(domain.DropNewest, opts.Overflow)

	bad := SubscribeRequest(domain.SubscribeOptions{})
	bad.Fields["overflow"] = structpb.NewStringValue("drop-everything")
	_, err = SubscribeFromRequest(bad)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestMembersResponse_KeepsOrder(t *testing.T) {
	req := require.New(t)
	members := []domain.Member{
		{UUID: "b", Address: "10.0.0.2:5701", Local: true, RSSBytes: 1 << 20, CPUPercent: 1.5},
		{Address: "10.0.0.1:5701"},
	}
	s, err := MembersResponse(members)
	req.NoError(err)
	decoded, err := MembersFromResponse(s)
	req.NoError(err)
	req.Len(decoded, 2)
	req.True(decoded[0].Local)
	req.Equal(uint64(1<<20), decoded[0].RSSBytes)
	req.Equal("10.0.0.1:5701", decoded[1].Address)
}
