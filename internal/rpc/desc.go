// Package rpc exposes the filter over gRPC: Fit estimates, validates,
// persists and activates a model; Predict decodes batches against the
// active model; ActiveModel returns the persisted mapping. Payloads ride
// on structpb.Struct and the service is registered through an explicit
// grpc.ServiceDesc, so there are no generated bindings to maintain.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "hmmfilter.v1.Filter"

const (
	fitMethod         = "/" + ServiceName + "/Fit"
	predictMethod     = "/" + ServiceName + "/Predict"
	activeModelMethod = "/" + ServiceName + "/ActiveModel"
)

// filterService is the handler contract the Server satisfies; grpc checks
// it at registration time through serviceDesc.HandlerType.
type filterService interface {
	Fit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ActiveModel(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// #region service-desc
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*filterService)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("Fit", filterService.Fit),
		methodDesc("Predict", filterService.Predict),
		methodDesc("ActiveModel", filterService.ActiveModel),
	},
	Streams: []grpc.StreamDesc{},
}

// methodDesc builds the unary method plumbing grpc expects: decode into a
// structpb.Struct, route through the interceptor chain if one is
// installed, then invoke the service method.
func methodDesc(name string, invoke func(filterService, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv.(filterService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return invoke(srv.(filterService), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// #endregion service-desc
