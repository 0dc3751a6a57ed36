package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
	pb "github.com/eunio/dailysync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// GRPCMaxBatchSize matches the server's per-transaction write limit.
const GRPCMaxBatchSize = 500

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.DocumentStoreClient

	mu          sync.RWMutex
	accessToken string
}

func withOutgoingHeaders(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	if id := common.OperationID(ctx); id != "" {
		md.Set(common.OperationIDHeaderName, id)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()

	return invoker(withOutgoingHeaders(ctx, token), method, req, reply, cc, opts...)
}

// NewGRPCClient prepares a lazy connection to the document server; no
// network traffic happens until the first call. Extra dial options are
// appended after the defaults (tests pass a bufconn dialer here).
func NewGRPCClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = pb.NewDocumentStoreClient(conn)
	return c, nil
}

// SetAccessToken replaces the token sent with subsequent calls.
func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) MaxBatchSize() int { return GRPCMaxBatchSize }

func (s *GRPCClient) Get(ctx context.Context, path string) (*models.Record, error) {
	owner, _, err := paths.ParseAny(path)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, wrapperspb.String(path))
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(ctx, err)
	}

	rec, err := models.FromStorage(owner, resp.AsMap())
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrValidation, path, err)
	}
	return rec, nil
}

func (s *GRPCClient) Set(ctx context.Context, path string, rec *models.Record) error {
	req, err := pb.NewSetRequest(path, models.ToStorage(rec))
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if _, err := s.client.Set(ctx, req); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

func (s *GRPCClient) Delete(ctx context.Context, path string) error {
	if _, err := s.client.Delete(ctx, wrapperspb.String(path)); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

func (s *GRPCClient) GetRange(ctx context.Context, ownerID string, start, end int64) ([]*models.Record, error) {
	resp, err := s.client.GetRange(ctx, pb.NewRangeRequest(ownerID, start, end))
	if err != nil {
		return nil, mapError(ctx, err)
	}

	docs := pb.DocumentsFromList(resp)
	out := make([]*models.Record, 0, len(docs))
	for _, d := range docs {
		rec, err := models.FromStorage(ownerID, d)
		if err != nil {
			return nil, fmt.Errorf("%w: decode range item: %v", common.ErrValidation, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GRPCClient) BatchSet(ctx context.Context, items []PathRecord) error {
	if len(items) > GRPCMaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", common.ErrValidation, len(items), GRPCMaxBatchSize)
	}
	docs := make([]pb.PathDocument, 0, len(items))
	for _, it := range items {
		docs = append(docs, pb.PathDocument{Path: it.Path, Document: models.ToStorage(it.Record)})
	}
	req, err := pb.NewBatchSetRequest(docs)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if _, err := s.client.BatchSet(ctx, req); err != nil {
		return mapError(ctx, err)
	}
	return nil
}

func (s *GRPCClient) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	resp, err := s.client.ListPaths(ctx, wrapperspb.String(prefix))
	if err != nil {
		return nil, mapError(ctx, err)
	}
	return pb.StringsFromList(resp), nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &emptypb.Empty{})
	if err != nil {
		return mapError(ctx, err)
	}
	if resp.GetValue() != "OK" {
		return fmt.Errorf("%w: ping answered %q", common.ErrNetwork, resp.GetValue())
	}
	return nil
}

// mapError translates gRPC status codes into the common error taxonomy.
// Canceled counts as the caller's own cancellation only when ctx says so;
// otherwise the server or a proxy dropped the call and it may be retried.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", common.ErrNetwork, err)
		}
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", common.ErrAuthentication, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrPermission, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", common.ErrNetwork, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	case codes.Canceled:
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%w: %s", context.Canceled, st.Message())
		}
		return fmt.Errorf("%w: call cancelled remotely: %s", common.ErrNetwork, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
