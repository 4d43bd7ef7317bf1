package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const RecordStore_ServiceName = "habitsync.v1.RecordStore"

const (
	RecordStore_Ping_FullMethodName                 = "/habitsync.v1.RecordStore/Ping"
	RecordStore_Register_FullMethodName             = "/habitsync.v1.RecordStore/Register"
	RecordStore_GetSalt_FullMethodName              = "/habitsync.v1.RecordStore/GetSalt"
	RecordStore_Login_FullMethodName                = "/habitsync.v1.RecordStore/Login"
	RecordStore_Refresh_FullMethodName              = "/habitsync.v1.RecordStore/Refresh"
	RecordStore_EnsureZone_FullMethodName           = "/habitsync.v1.RecordStore/EnsureZone"
	RecordStore_RegisterSubscription_FullMethodName = "/habitsync.v1.RecordStore/RegisterSubscription"
	RecordStore_FetchChanges_FullMethodName         = "/habitsync.v1.RecordStore/FetchChanges"
	RecordStore_SendChanges_FullMethodName          = "/habitsync.v1.RecordStore/SendChanges"
	RecordStore_Subscribe_FullMethodName            = "/habitsync.v1.RecordStore/Subscribe"
)

// RecordStoreClient is the client API for the RecordStore service.
type RecordStoreClient interface {
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSalt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	EnsureZone(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RegisterSubscription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	FetchChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SendChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type recordStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewRecordStoreClient(cc grpc.ClientConnInterface) RecordStoreClient {
	return &recordStoreClient{cc}
}

func (c *recordStoreClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *recordStoreClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_Ping_FullMethodName, in, opts)
}

func (c *recordStoreClient) Register(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_Register_FullMethodName, in, opts)
}

func (c *recordStoreClient) GetSalt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_GetSalt_FullMethodName, in, opts)
}

func (c *recordStoreClient) Login(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_Login_FullMethodName, in, opts)
}

func (c *recordStoreClient) Refresh(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_Refresh_FullMethodName, in, opts)
}

func (c *recordStoreClient) EnsureZone(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_EnsureZone_FullMethodName, in, opts)
}

func (c *recordStoreClient) RegisterSubscription(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_RegisterSubscription_FullMethodName, in, opts)
}

func (c *recordStoreClient) FetchChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_FetchChanges_FullMethodName, in, opts)
}

func (c *recordStoreClient) SendChanges(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RecordStore_SendChanges_FullMethodName, in, opts)
}

func (c *recordStoreClient) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	cOpts := append([]grpc.CallOption{grpc.StaticMethod()}, opts...)
	stream, err := c.cc.NewStream(ctx, &RecordStore_ServiceDesc.Streams[0], RecordStore_Subscribe_FullMethodName, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// RecordStoreServer is the server API for the RecordStore service.
// Implementations must embed UnimplementedRecordStoreServer.
type RecordStoreServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnsureZone(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RegisterSubscription(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchChanges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendChanges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedRecordStoreServer()
}

// UnimplementedRecordStoreServer must be embedded by value.
type UnimplementedRecordStoreServer struct{}

func (UnimplementedRecordStoreServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedRecordStoreServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedRecordStoreServer) GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSalt not implemented")
}
func (UnimplementedRecordStoreServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedRecordStoreServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Refresh not implemented")
}
func (UnimplementedRecordStoreServer) EnsureZone(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method EnsureZone not implemented")
}
func (UnimplementedRecordStoreServer) RegisterSubscription(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RegisterSubscription not implemented")
}
func (UnimplementedRecordStoreServer) FetchChanges(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FetchChanges not implemented")
}
func (UnimplementedRecordStoreServer) SendChanges(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SendChanges not implemented")
}
func (UnimplementedRecordStoreServer) Subscribe(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Errorf(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedRecordStoreServer) mustEmbedUnimplementedRecordStoreServer() {}

func RegisterRecordStoreServer(s grpc.ServiceRegistrar, srv RecordStoreServer) {
	s.RegisterService(&RecordStore_ServiceDesc, srv)
}

type unaryMethod func(srv RecordStoreServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecordStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RecordStoreServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(RecordStoreServer).Subscribe(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// RecordStore_ServiceDesc is the grpc.ServiceDesc for the RecordStore service.
var RecordStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RecordStore_ServiceName,
	HandlerType: (*RecordStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unaryHandler(RecordStore_Ping_FullMethodName, RecordStoreServer.Ping)},
		{MethodName: "Register", Handler: unaryHandler(RecordStore_Register_FullMethodName, RecordStoreServer.Register)},
		{MethodName: "GetSalt", Handler: unaryHandler(RecordStore_GetSalt_FullMethodName, RecordStoreServer.GetSalt)},
		{MethodName: "Login", Handler: unaryHandler(RecordStore_Login_FullMethodName, RecordStoreServer.Login)},
		{MethodName: "Refresh", Handler: unaryHandler(RecordStore_Refresh_FullMethodName, RecordStoreServer.Refresh)},
		{MethodName: "EnsureZone", Handler: unaryHandler(RecordStore_EnsureZone_FullMethodName, RecordStoreServer.EnsureZone)},
		{MethodName: "RegisterSubscription", Handler: unaryHandler(RecordStore_RegisterSubscription_FullMethodName, RecordStoreServer.RegisterSubscription)},
		{MethodName: "FetchChanges", Handler: unaryHandler(RecordStore_FetchChanges_FullMethodName, RecordStoreServer.FetchChanges)},
		{MethodName: "SendChanges", Handler: unaryHandler(RecordStore_SendChanges_FullMethodName, RecordStoreServer.SendChanges)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "habitsync/v1/record_store.proto",
}
