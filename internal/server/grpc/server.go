// Package grpc exposes the document store over gRPC. Every method except
// Ping requires an access token; the token's subject is the only owner whose
// documents the call may touch.
package grpc

import (
	"context"
	"net"

	"github.com/eunio/dailysync/internal/logging"
	pb "github.com/eunio/dailysync/internal/proto"
	"github.com/eunio/dailysync/internal/server/services"
	"google.golang.org/grpc"
)

// Documents is the owner-scoped document API served by this package.
type Documents interface {
	Get(ctx context.Context, ownerID, path string) (map[string]any, error)
	Set(ctx context.Context, ownerID, path string, body map[string]any) error
	Delete(ctx context.Context, ownerID, path string) error
	GetRange(ctx context.Context, ownerID, rangeOwner string, start, end int64) ([]map[string]any, error)
	BatchSet(ctx context.Context, ownerID string, items []services.PathBody) error
	ListPaths(ctx context.Context, ownerID, prefix string) ([]string, error)
}

// Authenticator resolves an access token to an owner id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

type GRPCServer struct {
	address   string
	documents Documents
	auth      Authenticator
	logger    logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, documents Documents, auth Authenticator) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		documents: documents,
		auth:      auth,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterDocumentStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
