// Package proto describes the dailysync.DocumentStore gRPC service.
//
// The service carries documents as google.protobuf.Struct values, so no
// generated message types are needed; this file plays the role of the
// *_grpc.pb.go stub for both sides of the connection.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "dailysync.DocumentStore"

const (
	DocumentStore_Get_FullMethodName       = "/dailysync.DocumentStore/Get"
	DocumentStore_Set_FullMethodName       = "/dailysync.DocumentStore/Set"
	DocumentStore_Delete_FullMethodName    = "/dailysync.DocumentStore/Delete"
	DocumentStore_GetRange_FullMethodName  = "/dailysync.DocumentStore/GetRange"
	DocumentStore_BatchSet_FullMethodName  = "/dailysync.DocumentStore/BatchSet"
	DocumentStore_ListPaths_FullMethodName = "/dailysync.DocumentStore/ListPaths"
	DocumentStore_Ping_FullMethodName      = "/dailysync.DocumentStore/Ping"
)

// DocumentStoreClient is the client API for the DocumentStore service.
//
//   - Get: path -> document; NotFound when absent
//   - Set: {path, document} -> empty; full overwrite
//   - Delete: path -> empty; NotFound when absent
//   - GetRange: {ownerId, start, end} -> list of documents
//   - BatchSet: list of {path, document} -> empty; all or nothing
//   - ListPaths: prefix -> list of paths
//   - Ping: empty -> "OK"
type DocumentStoreClient interface {
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Set(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Delete(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetRange(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	BatchSet(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ListPaths(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type documentStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentStoreClient(cc grpc.ClientConnInterface) DocumentStoreClient {
	return &documentStoreClient{cc}
}

func invoke[Out any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Out, error) {
	out := new(Out)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *documentStoreClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, DocumentStore_Get_FullMethodName, in, opts)
}

func (c *documentStoreClient) Set(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, DocumentStore_Set_FullMethodName, in, opts)
}

func (c *documentStoreClient) Delete(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, DocumentStore_Delete_FullMethodName, in, opts)
}

func (c *documentStoreClient) GetRange(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, DocumentStore_GetRange_FullMethodName, in, opts)
}

func (c *documentStoreClient) BatchSet(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, DocumentStore_BatchSet_FullMethodName, in, opts)
}

func (c *documentStoreClient) ListPaths(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, DocumentStore_ListPaths_FullMethodName, in, opts)
}

func (c *documentStoreClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, DocumentStore_Ping_FullMethodName, in, opts)
}

// DocumentStoreServer is the server API for the DocumentStore service.
type DocumentStoreServer interface {
	Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Set(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Delete(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	GetRange(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	BatchSet(context.Context, *structpb.ListValue) (*emptypb.Empty, error)
	ListPaths(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

func RegisterDocumentStoreServer(s grpc.ServiceRegistrar, srv DocumentStoreServer) {
	s.RegisterService(&DocumentStore_ServiceDesc, srv)
}

func unaryHandler[In any](fullMethod string, call func(DocumentStoreServer, context.Context, *In) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentStoreServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DocumentStore_ServiceDesc is the grpc.ServiceDesc for the DocumentStore service.
var DocumentStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Get",
			Handler: unaryHandler(DocumentStore_Get_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Get(ctx, in)
			}),
		},
		{
			MethodName: "Set",
			Handler: unaryHandler(DocumentStore_Set_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Set(ctx, in)
			}),
		},
		{
			MethodName: "Delete",
			Handler: unaryHandler(DocumentStore_Delete_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Delete(ctx, in)
			}),
		},
		{
			MethodName: "GetRange",
			Handler: unaryHandler(DocumentStore_GetRange_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.GetRange(ctx, in)
			}),
		},
		{
			MethodName: "BatchSet",
			Handler: unaryHandler(DocumentStore_BatchSet_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *structpb.ListValue) (any, error) {
				return s.BatchSet(ctx, in)
			}),
		},
		{
			MethodName: "ListPaths",
			Handler: unaryHandler(DocumentStore_ListPaths_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.ListPaths(ctx, in)
			}),
		},
		{
			MethodName: "Ping",
			Handler: unaryHandler(DocumentStore_Ping_FullMethodName, func(s DocumentStoreServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Ping(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dailysync/docstore.proto",
}
