// Package codec exposes engines over gRPC. Messages are google.protobuf.Struct
// values carrying the JSON form of the engine types, so no generated stubs
// are needed on either side.
package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
const serviceName = "gatekeeper.v1.DecisionService"

// Full method names.
const (
	MethodDecide       = "/" + serviceName + "/Decide"
	MethodHistory      = "/" + serviceName + "/History"
	MethodGetConfig    = "/" + serviceName + "/GetConfig"
	MethodUpdateConfig = "/" + serviceName + "/UpdateConfig"
	MethodClearHistory = "/" + serviceName + "/ClearHistory"
)

// DecisionServer is the server API for the decision service.
type DecisionServer interface {
	Decide(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the decision service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DecisionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Decide", Handler: unaryHandler(MethodDecide, DecisionServer.Decide)},
		{MethodName: "History", Handler: unaryHandler(MethodHistory, DecisionServer.History)},
		{MethodName: "GetConfig", Handler: unaryHandler(MethodGetConfig, DecisionServer.GetConfig)},
		{MethodName: "UpdateConfig", Handler: unaryHandler(MethodUpdateConfig, DecisionServer.UpdateConfig)},
		{MethodName: "ClearHistory", Handler: unaryHandler(MethodClearHistory, DecisionServer.ClearHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gatekeeper/v1/decision.proto",
}

// RegisterDecisionServer attaches srv to s.
func RegisterDecisionServer(s grpc.ServiceRegistrar, srv DecisionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(DecisionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DecisionServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DecisionServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc

// #region struct-conversion
// toStruct converts any JSON-encodable value into a Struct.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("to map: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromValue decodes a Struct field into dst through its JSON form.
func fromValue(v *structpb.Value, dst interface{}) error {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v.AsInterface())
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return json.Unmarshal(b, dst)
}

// #endregion struct-conversion
