package server

import (
	"budget-grid/auth"
	"budget-grid/contract"
	"budget-grid/infrastructure/grpc/rpc"
	"log/slog"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewNodeServer builds the gRPC server of a grid node: the AccountMap
// service behind group authentication, plus the standard health service.
func NewNodeServer(log *slog.Logger, authenticator *auth.Authenticator, accounts contract.AccountMap) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc3.UnaryLoggingInterceptor(log),
			auth.UnaryInterceptor(authenticator),
		),
		grpc.ChainStreamInterceptor(
			auth.StreamInterceptor(authenticator),
		))
	rpc.RegisterAccountMapServer(s, NewAccountMapServer(log, accounts))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(rpc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, healthServer
}
