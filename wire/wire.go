// Package wire converts grid values to and from google.protobuf.Struct.
// The same shapes are stored in BadgerDB and sent over gRPC, so a record
// read from disk can be forwarded to a client without re-encoding rules.
package wire

import (
	"budget-grid/domain"
	"budget-grid/domain/event"
	"budget-grid/errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	fieldAccountID = "account_id"
	fieldBalance   = "balance"
	fieldVersion   = "version"
	fieldUpdatedAt = "updated_at"
	fieldKind      = "kind"
	fieldValue     = "value"
	fieldOldValue  = "old_value"
	fieldMember    = "member"
	fieldAt        = "at"
	fieldToken     = "token"
	fieldFence     = "fence"
	fieldExpiresAt = "expires_at"
	fieldUUID      = "uuid"
	fieldAddress   = "address"
	fieldLocal     = "local"
	fieldStartedAt = "started_at"
	fieldRSS       = "rss_bytes"
	fieldCPU       = "cpu_percent"
)

// MarshalAccount encodes an account for storage.
func MarshalAccount(a domain.Account) ([]byte, error) {
	s, err := AccountToStruct(a)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// UnmarshalAccount decodes an account written by MarshalAccount.
func UnmarshalAccount(b []byte) (domain.Account, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return domain.Account{}, err
	}
	return AccountFromStruct(&s)
}

func AccountToStruct(a domain.Account) (*structpb.Struct, error) {
	return structpb.NewStruct(accountFields(a))
}

func AccountFromStruct(s *structpb.Struct) (domain.Account, error) {
	if s == nil {
		return domain.Account{}, fmt.Errorf("%w: empty account", errors.ErrInvalidArgument)
	}
	return accountFromFields(s.GetFields())
}

func accountFields(a domain.Account) map[string]any {
	return map[string]any{
		fieldAccountID: string(a.ID),
		fieldBalance:   a.Balance.String(),
		fieldVersion:   strconv.FormatUint(a.Version, 10),
		fieldUpdatedAt: formatTime(a.UpdatedAt),
	}
}

func accountFromFields(fields map[string]*structpb.Value) (domain.Account, error) {
	id := fields[fieldAccountID].GetStringValue()
	if id == "" {
		return domain.Account{}, fmt.Errorf("%w: account without id", errors.ErrInvalidArgument)
	}
	balance, err := decimal.NewFromString(fields[fieldBalance].GetStringValue())
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: balance: %w", id, err)
	}
	version, err := parseUint(fields[fieldVersion].GetStringValue())
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: version: %w", id, err)
	}
	updatedAt, err := parseTime(fields[fieldUpdatedAt].GetStringValue())
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: updated_at: %w", id, err)
	}
	return domain.Account{
		ID:        domain.AccountID(id),
		Balance:   balance,
		Version:   version,
		UpdatedAt: updatedAt,
	}, nil
}

func ChangeToStruct(c event.Change) (*structpb.Struct, error) {
	fields := map[string]any{
		fieldKind:      string(c.Kind),
		fieldAccountID: string(c.AccountID),
		fieldMember:    c.Member,
		fieldAt:        formatTime(c.At),
	}
	if c.Value != nil {
		fields[fieldValue] = accountFields(*c.Value)
	}
	if c.OldValue != nil {
		fields[fieldOldValue] = accountFields(*c.OldValue)
	}
	return structpb.NewStruct(fields)
}

func ChangeFromStruct(s *structpb.Struct) (event.Change, error) {
	fields := s.GetFields()
	kind := event.Kind(fields[fieldKind].GetStringValue())
	if !kind.Valid() {
		return event.Change{}, fmt.Errorf("%w: unknown change kind %q", errors.ErrInvalidArgument, kind)
	}
	at, err := parseTime(fields[fieldAt].GetStringValue())
	if err != nil {
		return event.Change{}, err
	}
	change := event.Change{
		Kind:      kind,
		AccountID: domain.AccountID(fields[fieldAccountID].GetStringValue()),
		Member:    fields[fieldMember].GetStringValue(),
		At:        at,
	}
	if v := fields[fieldValue].GetStructValue(); v != nil {
		a, err := accountFromFields(v.GetFields())
		if err != nil {
			return event.Change{}, err
		}
		change.Value = &a
	}
	if v := fields[fieldOldValue].GetStructValue(); v != nil {
		a, err := accountFromFields(v.GetFields())
		if err != nil {
			return event.Change{}, err
		}
		change.OldValue = &a
	}
	return change, nil
}

func LeaseToStruct(l domain.Lease) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		fieldAccountID: string(l.AccountID),
		fieldToken:     l.Token,
		fieldFence:     strconv.FormatUint(l.Fence, 10),
		fieldExpiresAt: formatTime(l.ExpiresAt),
	})
}

func LeaseFromStruct(s *structpb.Struct) (domain.Lease, error) {
	fields := s.GetFields()
	fence, err := parseUint(fields[fieldFence].GetStringValue())
	if err != nil {
		return domain.Lease{}, fmt.Errorf("lease fence: %w", err)
	}
	expiresAt, err := parseTime(fields[fieldExpiresAt].GetStringValue())
	if err != nil {
		return domain.Lease{}, fmt.Errorf("lease expiry: %w", err)
	}
	return domain.Lease{
		AccountID: domain.AccountID(fields[fieldAccountID].GetStringValue()),
		Token:     fields[fieldToken].GetStringValue(),
		Fence:     fence,
		ExpiresAt: expiresAt,
	}, nil
}

func MemberToStruct(m domain.Member) (*structpb.Struct, error) {
	return structpb.NewStruct(memberFields(m))
}

func memberFields(m domain.Member) map[string]any {
	return map[string]any{
		fieldUUID:      m.UUID,
		fieldAddress:   m.Address,
		fieldLocal:     m.Local,
		fieldStartedAt: formatTime(m.StartedAt),
		fieldRSS:       strconv.FormatUint(m.RSSBytes, 10),
		fieldCPU:       m.CPUPercent,
	}
}

func MemberFromStruct(s *structpb.Struct) (domain.Member, error) {
	fields := s.GetFields()
	startedAt, err := parseTime(fields[fieldStartedAt].GetStringValue())
	if err != nil {
		return domain.Member{}, err
	}
	rss, err := parseUint(fields[fieldRSS].GetStringValue())
	if err != nil {
		return domain.Member{}, err
	}
	return domain.Member{
		UUID:       fields[fieldUUID].GetStringValue(),
		Address:    fields[fieldAddress].GetStringValue(),
		Local:      fields[fieldLocal].GetBoolValue(),
		StartedAt:  startedAt,
		RSSBytes:   rss,
		CPUPercent: fields[fieldCPU].GetNumberValue(),
	}, nil
}

// MembersToList encodes an ordered member list.
func MembersToList(members []domain.Member) (*structpb.ListValue, error) {
	values := make([]any, 0, len(members))
	for _, m := range members {
		values = append(values, memberFields(m))
	}
	return structpb.NewList(values)
}

func MembersFromList(list *structpb.ListValue) ([]domain.Member, error) {
	members := make([]domain.Member, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		m, err := MemberFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// AccountsToList encodes a list of accounts.
func AccountsToList(accounts []domain.Account) (*structpb.ListValue, error) {
	values := make([]any, 0, len(accounts))
	for _, a := range accounts {
		values = append(values, accountFields(a))
	}
	return structpb.NewList(values)
}

func AccountsFromList(list *structpb.ListValue) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		a, err := accountFromFields(v.GetStructValue().GetFields())
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func parseUint(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
