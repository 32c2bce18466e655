package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Methods callable without group credentials.
var publicMethods = map[string]struct{}{
	"/grpc.health.v1.Health/Check": {},
	"/grpc.health.v1.Health/Watch": {},
	"/grpc.health.v1.Health/List":  {},
}

// UnaryInterceptor rejects calls not carrying the group credentials.
func UnaryInterceptor(a *Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !isPublicMethod(info.FullMethod) {
			if err := a.authenticate(ctx); err != nil {
				return nil, err
			}
		}
		return handler(ctx, req)
	}
}

func StreamInterceptor(a *Authenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !isPublicMethod(info.FullMethod) {
			if err := a.authenticate(ss.Context()); err != nil {
				return err
			}
		}
		return handler(srv, ss)
	}
}

func (a *Authenticator) authenticate(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "metadata is missing")
	}
	group, password := first(md, GroupKey), first(md, PasswordKey)
	if group == "" || password == "" {
		return status.Error(codes.Unauthenticated, "group credentials are missing")
	}
	if err := a.Check(group, password); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

func first(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// isPublicMethod checks if the current gRPC method is allowed without credentials.
func isPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}
