package grpc

import (
	"context"
	"fmt"
	"testing"

	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	pb "github.com/eunio/dailysync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// fakeAuth accepts "tok-<owner>" and treats "expired" as an expired token.
type fakeAuth struct{}

func (fakeAuth) Authenticate(token string) (string, error) {
	switch {
	case token == "expired":
		return "", common.ErrTokenExpired
	case len(token) > 4 && token[:4] == "tok-":
		return token[4:], nil
	default:
		return "", fmt.Errorf("%w: bad signature", common.ErrInvalidToken)
	}
}

func newTestServer() *GRPCServer {
	return NewGRPCServer("", logging.Nop(), newFakeDocuments(), fakeAuth{})
}

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_PingAllowedWithoutToken(t *testing.T) {
	s := newTestServer()

	info := &grpc.UnaryServerInfo{FullMethod: pb.DocumentStore_Ping_FullMethodName}
	handlerCalled := false
	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled || resp != "ok" {
		t.Fatalf("handler not called properly: called=%v resp=%v", handlerCalled, resp)
	}
}

func TestInterceptor_RejectsBadTokens(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: pb.DocumentStore_Set_FullMethodName}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called")
		return nil, nil
	}

	tests := []struct {
		name string
		ctx  context.Context
		msg  string
	}{
		{name: "no metadata", ctx: context.Background(), msg: "missing token"},
		{name: "empty token", ctx: withToken(""), msg: "missing token"},
		{name: "invalid", ctx: withToken("garbage"), msg: "invalid token"},
		{name: "expired", ctx: withToken("expired"), msg: "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			if status.Code(err) != codes.Unauthenticated {
				t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
			}
			if got := status.Convert(err).Message(); got != tt.msg {
				t.Fatalf("expected %q, got %q", tt.msg, got)
			}
		})
	}
}

func TestInterceptor_ValidTokenStoresOwner(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: pb.DocumentStore_Get_FullMethodName}

	var owner string
	h := func(ctx context.Context, req any) (any, error) {
		owner, _ = ownerFromContext(ctx)
		return nil, nil
	}

	if _, err := s.accessTokenInterceptor(withToken("tok-u1"), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != "u1" {
		t.Fatalf("owner in context = %q, want u1", owner)
	}
}

func TestLoggingInterceptor_RecordsOperationID(t *testing.T) {
	logger := logging.NewMemoryLogger()
	s := NewGRPCServer("", logger, newFakeDocuments(), fakeAuth{})
	info := &grpc.UnaryServerInfo{FullMethod: pb.DocumentStore_Delete_FullMethodName}

	md := metadata.New(map[string]string{common.OperationIDHeaderName: "op-7"})
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, _ = s.loggingInterceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, nil
	})
	_, _ = s.loggingInterceptor(ctx, nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "gone")
	})

	served := logger.Find("request served")
	if len(served) != 1 || served[0].Fields["opId"] != "op-7" || served[0].Fields["code"] != "OK" {
		t.Fatalf("unexpected served entries: %+v", served)
	}
	failed := logger.Find("request failed")
	if len(failed) != 1 || failed[0].Fields["code"] != "NotFound" || failed[0].Fields["module"] != "grpc_server" {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}
}
