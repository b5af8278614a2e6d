package fleetrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "schoolbus.tracker.v1.FleetService"

// FleetServiceServer is the server API for FleetService. Messages are
// protobuf well-known types, so no generated code is required.
type FleetServiceServer interface {
	// GetFleet lists buses, optionally filtered by a search query.
	GetFleet(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetBus returns one bus by id.
	GetBus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetStats returns the dashboard counters.
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// ListAlerts returns alerts newest first; a positive limit bounds the count.
	ListAlerts(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	MarkAlertRead(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	DismissAlert(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
}

// FleetService_ServiceDesc describes FleetService for grpc.Server.
var FleetService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FleetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetFleet", Handler: unaryHandler("GetFleet", FleetServiceServer.GetFleet)},
		{MethodName: "GetBus", Handler: unaryHandler("GetBus", FleetServiceServer.GetBus)},
		{MethodName: "GetStats", Handler: unaryHandler("GetStats", FleetServiceServer.GetStats)},
		{MethodName: "ListAlerts", Handler: unaryHandler("ListAlerts", FleetServiceServer.ListAlerts)},
		{MethodName: "MarkAlertRead", Handler: unaryHandler("MarkAlertRead", FleetServiceServer.MarkAlertRead)},
		{MethodName: "DismissAlert", Handler: unaryHandler("DismissAlert", FleetServiceServer.DismissAlert)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "schoolbus/tracker/v1/fleet.proto",
}

// RegisterFleetServiceServer registers srv on s.
func RegisterFleetServiceServer(s grpc.ServiceRegistrar, srv FleetServiceServer) {
	s.RegisterService(&FleetService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(FleetServiceServer, context.Context, *Req) (Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FleetServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FleetServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FleetServiceClient is the client API for FleetService.
type FleetServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFleetServiceClient wraps a client connection.
func NewFleetServiceClient(cc grpc.ClientConnInterface) *FleetServiceClient {
	return &FleetServiceClient{cc: cc}
}

func (c *FleetServiceClient) GetFleet(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetFleet", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) GetBus(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetBus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetStats", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) ListAlerts(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "ListAlerts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) MarkAlertRead(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.invoke(ctx, "MarkAlertRead", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) DismissAlert(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.invoke(ctx, "DismissAlert", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FleetServiceClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}
