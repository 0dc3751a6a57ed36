package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/eunio/dailysync/internal/client/client"
	"github.com/eunio/dailysync/internal/client/models"
	"github.com/eunio/dailysync/internal/client/paths"
	"github.com/eunio/dailysync/internal/common"
	"github.com/eunio/dailysync/internal/logging"
	"github.com/eunio/dailysync/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fakeDocuments keeps bodies by path and enforces ownership by path.
type fakeDocuments struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	err  error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[string]map[string]any{}}
}

func (f *fakeDocuments) check(ownerID, path string) error {
	if f.err != nil {
		return f.err
	}
	owner, _, err := paths.ParseAny(path)
	if err != nil {
		return err
	}
	if owner != ownerID {
		return fmt.Errorf("%w: %s", common.ErrPermission, path)
	}
	return nil
}

func (f *fakeDocuments) Get(_ context.Context, ownerID, path string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ownerID, path); err != nil {
		return nil, err
	}
	d, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	return d, nil
}

func (f *fakeDocuments) Set(_ context.Context, ownerID, path string, body map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ownerID, path); err != nil {
		return err
	}
	f.docs[path] = body
	return nil
}

func (f *fakeDocuments) Delete(_ context.Context, ownerID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(ownerID, path); err != nil {
		return err
	}
	if _, ok := f.docs[path]; !ok {
		return fmt.Errorf("%w: %s", common.ErrNotFound, path)
	}
	delete(f.docs, path)
	return nil
}

func (f *fakeDocuments) GetRange(_ context.Context, ownerID, rangeOwner string, start, end int64) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rangeOwner != ownerID {
		return nil, common.ErrPermission
	}
	prefix, _ := paths.OwnerPrefix(ownerID)
	var out []map[string]any
	for p, d := range f.docs {
		day, _ := d[models.KeyDateEpochDays].(float64)
		if strings.HasPrefix(p, prefix) && int64(day) >= start && int64(day) <= end {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocuments) BatchSet(_ context.Context, ownerID string, items []services.PathBody) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		if err := f.check(ownerID, it.Path); err != nil {
			return err
		}
	}
	for _, it := range items {
		f.docs[it.Path] = it.Body
	}
	return nil
}

func (f *fakeDocuments) ListPaths(_ context.Context, ownerID, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.docs {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

func ownerCtx(owner string) context.Context {
	return context.WithValue(context.Background(), ownerIDKey, owner)
}

func TestHandlers_RequireOwner(t *testing.T) {
	s := newTestServer()
	_, err := s.Get(context.Background(), wrapperspb.String("users/u1/dailyLogs/2025-01-10"))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestHandlers_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{err: fmt.Errorf("%w: x", common.ErrPermission), want: codes.PermissionDenied},
		{err: fmt.Errorf("%w: x", common.ErrNotFound), want: codes.NotFound},
		{err: fmt.Errorf("%w: x", common.ErrValidation), want: codes.InvalidArgument},
		{err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{err: fmt.Errorf("%w: disk", common.ErrDatabase), want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			docs := newFakeDocuments()
			docs.err = tt.err
			s := NewGRPCServer("", logging.Nop(), docs, fakeAuth{})

			_, err := s.Delete(ownerCtx("u1"), wrapperspb.String("users/u1/dailyLogs/2025-01-10"))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestHandlers_InternalErrorHidesDetail(t *testing.T) {
	docs := newFakeDocuments()
	docs.err = errors.New("pq: connection reset by peer")
	logger := logging.NewMemoryLogger()
	s := NewGRPCServer("", logger, docs, fakeAuth{})

	_, err := s.Get(ownerCtx("u1"), wrapperspb.String("users/u1/dailyLogs/2025-01-10"))
	require.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())
	require.Len(t, logger.Find("request error"), 1)
}

func TestHandlers_MalformedRequests(t *testing.T) {
	s := newTestServer()
	ctx := ownerCtx("u1")

	_, err := s.Set(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.GetRange(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.BatchSet(ctx, &structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("x")}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPing(t *testing.T) {
	resp, err := newTestServer().Ping(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.GetValue())
}

// startBufconn serves s over an in-memory listener and returns a dialer
// option for clients.
func startBufconn(t *testing.T, s *GRPCServer) grpc.DialOption {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func newClient(t *testing.T, dialer grpc.DialOption, token string) *client.GRPCClient {
	t.Helper()
	c, err := client.NewGRPCClient("passthrough:///bufnet", token, dialer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func record(id string, day int64, payload map[string]any) *models.Record {
	return &models.Record{
		OwnerID:       "u1",
		RecordID:      id,
		LogicalDate:   day,
		CreatedAt:     1_736_500_000_000,
		UpdatedAt:     1_736_500_000_000,
		SchemaVersion: models.CurrentSchemaVersion,
		Payload:       payload,
	}
}

func TestRoundTrip_WithClient(t *testing.T) {
	logger := logging.NewMemoryLogger()
	docs := newFakeDocuments()
	dialer := startBufconn(t, NewGRPCServer("", logger, docs, fakeAuth{}))
	c := newClient(t, dialer, "tok-u1")
	ctx := common.WithOperationID(context.Background(), "op-42")

	require.NoError(t, c.Ping(ctx))

	p, err := paths.Resolve("u1", "2025-01-10")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, p, record("2025-01-10", 20098, map[string]any{"mood": "calm", "bbt": 97.8})))

	got, err := c.Get(ctx, p)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2025-01-10", got.RecordID)
	assert.Equal(t, int64(20098), got.LogicalDate)
	assert.Equal(t, int64(1_736_500_000_000), got.UpdatedAt)
	assert.Equal(t, "calm", got.Payload["mood"])
	assert.Equal(t, 97.8, got.Payload["bbt"])

	p2, err := paths.Resolve("u1", "2025-01-09")
	require.NoError(t, err)
	legacy, err := paths.ResolveLegacy("u1", "2025-01-01")
	require.NoError(t, err)
	require.NoError(t, c.BatchSet(ctx, []client.PathRecord{
		{Path: p2, Record: record("2025-01-09", 20097, nil)},
		{Path: legacy, Record: record("2025-01-01", 20089, nil)},
	}))

	ranged, err := c.GetRange(ctx, "u1", 20090, 20100)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	prefix, err := paths.LegacyOwnerPrefix("u1")
	require.NoError(t, err)
	listed, err := c.ListPaths(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, []string{legacy}, listed)

	require.NoError(t, c.Delete(ctx, p))
	gone, err := c.Get(ctx, p)
	require.NoError(t, err)
	assert.Nil(t, gone)
	require.ErrorIs(t, c.Delete(ctx, p), common.ErrNotFound)

	served := logger.Find("request served")
	require.NotEmpty(t, served)
	assert.Equal(t, "op-42", served[0].Fields["opId"])
}

func TestRoundTrip_OwnerIsolation(t *testing.T) {
	dialer := startBufconn(t, NewGRPCServer("", logging.Nop(), newFakeDocuments(), fakeAuth{}))
	c := newClient(t, dialer, "tok-u1")
	ctx := context.Background()

	foreign, err := paths.Resolve("u2", "2025-01-10")
	require.NoError(t, err)
	rec := record("2025-01-10", 20098, nil)
	rec.OwnerID = "u2"

	require.ErrorIs(t, c.Set(ctx, foreign, rec), common.ErrPermission)
	_, err = c.GetRange(ctx, "u2", 0, 30000)
	require.ErrorIs(t, err, common.ErrPermission)
}

func TestRoundTrip_Authentication(t *testing.T) {
	dialer := startBufconn(t, NewGRPCServer("", logging.Nop(), newFakeDocuments(), fakeAuth{}))
	ctx := context.Background()
	p, err := paths.Resolve("u1", "2025-01-10")
	require.NoError(t, err)

	anon := newClient(t, dialer, "")
	require.NoError(t, anon.Ping(ctx))
	_, err = anon.Get(ctx, p)
	require.ErrorIs(t, err, common.ErrAuthentication)

	expired := newClient(t, dialer, "expired")
	_, err = expired.Get(ctx, p)
	require.ErrorIs(t, err, common.ErrAuthentication)
}
