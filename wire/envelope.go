package wire

import (
	"budget-grid/domain"
	"budget-grid/errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Envelopes of the AccountMap RPCs. Every request and response is a
// google.protobuf.Struct so the service needs no generated code.

const (
	fieldFound           = "found"
	fieldLease           = "lease"
	fieldAccounts        = "accounts"
	fieldMembers         = "members"
	fieldIncludePrevious = "include_previous"
	fieldQueueSize       = "queue_size"
	fieldOverflow        = "overflow"
)

func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

func IDRequest(id domain.AccountID) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAccountID: structpb.NewStringValue(string(id)),
	}}
}

func IDFromRequest(s *structpb.Struct) domain.AccountID {
	return domain.AccountID(s.GetFields()[fieldAccountID].GetStringValue())
}

// LookupResponse answers Get and Remove. value is ignored when found is false.
func LookupResponse(a domain.Account, found bool) (*structpb.Struct, error) {
	fields := map[string]any{fieldFound: found}
	if found {
		fields[fieldValue] = accountFields(a)
	}
	return structpb.NewStruct(fields)
}

func LookupFromResponse(s *structpb.Struct) (domain.Account, bool, error) {
	fields := s.GetFields()
	if !fields[fieldFound].GetBoolValue() {
		return domain.Account{}, false, nil
	}
	a, err := accountFromFields(fields[fieldValue].GetStructValue().GetFields())
	if err != nil {
		return domain.Account{}, false, err
	}
	return a, true, nil
}

func PutRequest(lease domain.Lease, a domain.Account) (*structpb.Struct, error) {
	l, err := LeaseToStruct(lease)
	if err != nil {
		return nil, err
	}
	value, err := AccountToStruct(a)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldLease: structpb.NewStructValue(l),
		fieldValue: structpb.NewStructValue(value),
	}}, nil
}

func PutFromRequest(s *structpb.Struct) (domain.Lease, domain.Account, error) {
	lease, err := leaseField(s)
	if err != nil {
		return domain.Lease{}, domain.Account{}, err
	}
	a, err := AccountFromStruct(s.GetFields()[fieldValue].GetStructValue())
	if err != nil {
		return domain.Lease{}, domain.Account{}, err
	}
	return lease, a, nil
}

func RemoveRequest(lease domain.Lease, id domain.AccountID) (*structpb.Struct, error) {
	l, err := LeaseToStruct(lease)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldLease:     structpb.NewStructValue(l),
		fieldAccountID: structpb.NewStringValue(string(id)),
	}}, nil
}

func RemoveFromRequest(s *structpb.Struct) (domain.Lease, domain.AccountID, error) {
	lease, err := leaseField(s)
	if err != nil {
		return domain.Lease{}, "", err
	}
	return lease, IDFromRequest(s), nil
}

func leaseField(s *structpb.Struct) (domain.Lease, error) {
	l := s.GetFields()[fieldLease].GetStructValue()
	if l == nil {
		return domain.Lease{}, fmt.Errorf("%w: missing lease", errors.ErrInvalidArgument)
	}
	return LeaseFromStruct(l)
}

func AccountsResponse(accounts []domain.Account) (*structpb.Struct, error) {
	list, err := AccountsToList(accounts)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAccounts: structpb.NewListValue(list),
	}}, nil
}

func AccountsFromResponse(s *structpb.Struct) ([]domain.Account, error) {
	return AccountsFromList(s.GetFields()[fieldAccounts].GetListValue())
}

func MembersResponse(members []domain.Member) (*structpb.Struct, error) {
	list, err := MembersToList(members)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldMembers: structpb.NewListValue(list),
	}}, nil
}

func MembersFromResponse(s *structpb.Struct) ([]domain.Member, error) {
	return MembersFromList(s.GetFields()[fieldMembers].GetListValue())
}

func SubscribeRequest(opts domain.SubscribeOptions) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldIncludePrevious: structpb.NewBoolValue(opts.IncludePrevious),
		fieldQueueSize:       structpb.NewNumberValue(float64(opts.QueueSize)),
		fieldOverflow:        structpb.NewStringValue(string(opts.Overflow)),
	}}
}

func SubscribeFromRequest(s *structpb.Struct) (domain.SubscribeOptions, error) {
	fields := s.GetFields()
	overflow, err := domain.ParseOverflowPolicy(fields[fieldOverflow].GetStringValue())
	if err != nil {
		return domain.SubscribeOptions{}, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	return domain.SubscribeOptions{
		IncludePrevious: fields[fieldIncludePrevious].GetBoolValue(),
		QueueSize:       int(fields[fieldQueueSize].GetNumberValue()),
		Overflow:        overflow,
	}.Normalize(), nil
}
