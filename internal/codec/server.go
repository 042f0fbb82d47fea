package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/hormone-harness/internal/fault"
	"github.com/danielpatrickdp/hormone-harness/internal/model"
)

// #region service
// modelServer is the handler type of the ModelService descriptor.
type modelServer interface {
	generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	factory model.Factory
}

// generate serves each call from a fresh model so concurrent callers never share state.
func (s *server) generate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.factory().Generate(ctx, decodeRequest(in))
	if err != nil {
		code := codes.Internal
		if fault.Is(err, fault.ClassCancelled) {
			code = codes.Canceled
		}
		return nil, status.Error(code, err.Error())
	}
	return encodeResponse(resp)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*modelServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Generate",
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return srv.(modelServer).generate(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(modelServer).generate(ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}},
	Streams: []grpc.StreamDesc{},
}

// Register exposes models built by factory as a ModelService on s.
func Register(s *grpc.Server, factory model.Factory) {
	s.RegisterService(&serviceDesc, &server{factory: factory})
}

// #endregion service
