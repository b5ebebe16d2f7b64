package codec

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region server
// Server serves the decision service from a registry of per-symbol engines.
type Server struct {
	reg *engine.Registry
	log zerolog.Logger
}

var _ DecisionServer = (*Server)(nil)

// NewServer returns a Server backed by reg.
func NewServer(reg *engine.Registry, log zerolog.Logger) *Server {
	return &Server{reg: reg, log: log.With().Str("component", "grpc").Logger()}
}

// Decide runs one tick. Request: {symbol, input}. Response: {decision}.
func (s *Server) Decide(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.engine(req)
	if err != nil {
		return nil, err
	}
	var in signals.Input
	if err := fromValue(req.Fields["input"], &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode input: %v", err)
	}
	return reply(map[string]interface{}{"decision": e.Decide(in)})
}

// History returns recent decisions, newest first. Request: {symbol, limit}.
func (s *Server) History(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.known(req)
	if err != nil {
		return nil, err
	}
	limit := int(req.Fields["limit"].GetNumberValue())
	ds := e.History(limit)
	if ds == nil {
		ds = []decision.Decision{}
	}
	return reply(map[string]interface{}{"decisions": ds})
}

// GetConfig returns the config of one engine, or the registry template when
// no symbol is given.
func (s *Server) GetConfig(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req.Fields["symbol"].GetStringValue() == "" {
		return reply(map[string]interface{}{"config": s.reg.Config()})
	}
	e, err := s.known(req)
	if err != nil {
		return nil, err
	}
	return reply(map[string]interface{}{"config": e.Config()})
}

// UpdateConfig applies a partial config to every engine. Request: {patch}.
func (s *Server) UpdateConfig(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var p engine.ConfigPatch
	if err := fromValue(req.Fields["patch"], &p); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode patch: %v", err)
	}
	cfg, err := s.reg.UpdateConfig(p)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.log.Info().Msg("config updated over grpc")
	return reply(map[string]interface{}{"config": cfg})
}

// ClearHistory resets history, EMA and flap state of one engine.
func (s *Server) ClearHistory(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := s.known(req)
	if err != nil {
		return nil, err
	}
	e.ClearHistory()
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *Server) engine(req *structpb.Struct) (*engine.Engine, error) {
	e, err := s.reg.Get(req.Fields["symbol"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return e, nil
}

// known resolves an engine that already exists. Only Decide creates engines.
func (s *Server) known(req *structpb.Struct) (*engine.Engine, error) {
	symbol := req.Fields["symbol"].GetStringValue()
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol required")
	}
	e, ok := s.reg.Lookup(symbol)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown symbol %q", symbol)
	}
	return e, nil
}

func reply(v map[string]interface{}) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

// #endregion server

// #region interceptor
// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		ev := log.Debug()
		if err != nil {
			ev = log.Warn().Err(err)
		}
		ev.Str("method", info.FullMethod).
			Str("code", status.Code(err).String()).
			Dur("took", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}

// #endregion interceptor
