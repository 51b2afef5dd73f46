package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "mitzi.SheetService"

// SheetServiceServer is the server API for mitzi.SheetService. Sheets and tiers
// travel as structpb.Struct in their JSON shape.
type SheetServiceServer interface {
	GetSheet(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AddTier(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateTier(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveTier(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	AddRule(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	RemoveRule(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ExportPNG(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	StreamEvents(*emptypb.Empty, grpc.ServerStream) error
}

func unary[T any, R any](method string, newReq func() T, call func(SheetServiceServer, context.Context, T) (R, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				out, err := call(srv.(SheetServiceServer), ctx, in)
				return out, err
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				out, err := call(srv.(SheetServiceServer), ctx, req.(T))
				return out, err
			})
		},
	}
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newInt64() *wrapperspb.Int64Value { return new(wrapperspb.Int64Value) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// ServiceDesc describes mitzi.SheetService without generated stubs
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SheetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetSheet", newEmpty, SheetServiceServer.GetSheet),
		unary("AddTier", newStruct, SheetServiceServer.AddTier),
		unary("UpdateTier", newStruct, SheetServiceServer.UpdateTier),
		unary("RemoveTier", newInt64, SheetServiceServer.RemoveTier),
		unary("AddRule", newString, SheetServiceServer.AddRule),
		unary("RemoveRule", newString, SheetServiceServer.RemoveRule),
		unary("ExportPNG", newEmpty, SheetServiceServer.ExportPNG),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamEvents",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SheetServiceServer).StreamEvents(in, stream)
			},
		},
	},
	Metadata: "mitzi/sheet.proto",
}

// RegisterSheetService registers srv on s
func RegisterSheetService(s grpc.ServiceRegistrar, srv SheetServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// SheetClient calls mitzi.SheetService
type SheetClient struct {
	cc grpc.ClientConnInterface
}

func NewSheetClient(cc grpc.ClientConnInterface) *SheetClient {
	return &SheetClient{cc: cc}
}

func (c *SheetClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *SheetClient) GetSheet(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "GetSheet", &emptypb.Empty{}, out, opts...)
}

func (c *SheetClient) AddTier(ctx context.Context, tier *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "AddTier", tier, out, opts...)
}

func (c *SheetClient) UpdateTier(ctx context.Context, tier *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "UpdateTier", tier, out, opts...)
}

func (c *SheetClient) RemoveTier(ctx context.Context, id int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "RemoveTier", wrapperspb.Int64(id), out, opts...)
}

func (c *SheetClient) AddRule(ctx context.Context, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "AddRule", wrapperspb.String(text), out, opts...)
}

func (c *SheetClient) RemoveRule(ctx context.Context, text string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.invoke(ctx, "RemoveRule", wrapperspb.String(text), out, opts...)
}

func (c *SheetClient) ExportPNG(ctx context.Context, opts ...grpc.CallOption) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.invoke(ctx, "ExportPNG", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// StreamEvents opens the server stream of change events
func (c *SheetClient) StreamEvents(ctx context.Context, opts ...grpc.CallOption) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}

// EventStream receives events sent by StreamEvents
type EventStream struct {
	stream grpc.ClientStream
}

func (s *EventStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}
