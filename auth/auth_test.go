package auth

import (
	"budget-grid/errors"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "dev-pass"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("other-pass", hash)
	req.NoError(err)
	req.False(match)

	_, err = ComparePassword(password, "$bcrypt$whatever")
	req.Error(err)
}

func TestGroupCredentials_Validate(t *testing.T) {
	req := require.New(t)
	req.NoError(GroupCredentials{Name: DefaultGroup, Password: DefaultPassword}.Validate())
	req.ErrorIs(GroupCredentials{Name: DefaultGroup}.Validate(), errors.ErrInvalidArgument)
	req.ErrorIs(GroupCredentials{Name: strings.Repeat("g", 65), Password: "p"}.Validate(), errors.ErrInvalidArgument)
}

func TestAuthenticator_Check(t *testing.T) {
	req := require.New(t)
	a, err := NewAuthenticatorFromPassword(DefaultGroup, DefaultPassword)
	req.NoError(err)

	req.NoError(a.Check(DefaultGroup, DefaultPassword))
	// Second check is served from the verified cache
	req.NoError(a.Check(DefaultGroup, DefaultPassword))
	req.ErrorIs(a.Check("prod", DefaultPassword), errors.ErrUnauthenticated)
	req.ErrorIs(a.Check(DefaultGroup, "guess"), errors.ErrUnauthenticated)
}

func TestUnaryInterceptor(t *testing.T) {
	a, err := NewAuthenticatorFromPassword(DefaultGroup, DefaultPassword)
	require.NoError(t, err)
	interceptor := UnaryInterceptor(a)
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	protected := &grpc.UnaryServerInfo{FullMethod: "/budgetgrid.v1.AccountMap/Get"}

	t.Run("should allow health checks without credentials", func(t *testing.T) {
		req := require.New(t)
		res, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
		req.NoError(err)
		req.Equal("ok", res)
	})

	t.Run("should fail when metadata is missing", func(t *testing.T) {
		req := require.New(t)
		_, err := interceptor(context.Background(), nil, protected, handler)
		req.Equal(codes.Unauthenticated, status.Code(err))
	})

	t.Run("should fail on a wrong password", func(t *testing.T) {
		req := require.New(t)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(GroupKey, DefaultGroup, PasswordKey, "nope"))
		_, err := interceptor(ctx, nil, protected, handler)
		req.Equal(codes.Unauthenticated, status.Code(err))
	})

	t.Run("should pass with the group credentials", func(t *testing.T) {
		req := require.New(t)
		md, err := GroupCredentials{Name: DefaultGroup, Password: DefaultPassword}.GetRequestMetadata(context.Background())
		req.NoError(err)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.New(md))
		res, err := interceptor(ctx, nil, protected, handler)
		req.NoError(err)
		req.Equal("ok", res)
	})
}
