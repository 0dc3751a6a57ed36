package grpc

import (
	"context"
	"errors"

	"github.com/eunio/dailysync/internal/common"
	pb "github.com/eunio/dailysync/internal/proto"
	"github.com/eunio/dailysync/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// toStatus maps service errors onto gRPC codes. Unclassified errors are
// logged and reported as Internal without their message.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrPermission):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "request error", "op", op, "error", err)
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) owner(ctx context.Context) (string, error) {
	owner, ok := ownerFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing token")
	}
	return owner, nil
}

func (s *GRPCServer) Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.Get(ctx, owner, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "get", err)
	}
	out, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, s.toStatus(ctx, "get", err)
	}
	return out, nil
}

func (s *GRPCServer) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	in, err := pb.ParseSetRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.documents.Set(ctx, owner, in.Path, in.Document); err != nil {
		return nil, s.toStatus(ctx, "set", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Delete(ctx, owner, req.GetValue()); err != nil {
		return nil, s.toStatus(ctx, "delete", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) GetRange(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	rangeOwner, start, end, err := pb.ParseRangeRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	docs, err := s.documents.GetRange(ctx, owner, rangeOwner, start, end)
	if err != nil {
		return nil, s.toStatus(ctx, "get_range", err)
	}
	out, err := pb.NewDocumentList(docs)
	if err != nil {
		return nil, s.toStatus(ctx, "get_range", err)
	}
	return out, nil
}

func (s *GRPCServer) BatchSet(ctx context.Context, req *structpb.ListValue) (*emptypb.Empty, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	in, err := pb.ParseBatchSetRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	items := make([]services.PathBody, 0, len(in))
	for _, it := range in {
		items = append(items, services.PathBody{Path: it.Path, Body: it.Document})
	}
	if err := s.documents.BatchSet(ctx, owner, items); err != nil {
		return nil, s.toStatus(ctx, "batch_set", err)
	}
	s.logger.Info(ctx, "batch written", "ownerId", owner, "count", len(items))
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) ListPaths(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	owner, err := s.owner(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.documents.ListPaths(ctx, owner, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "list_paths", err)
	}
	return pb.NewStringList(list), nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}
