package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/decision"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/signals"
)

// #region client-struct
// Client calls a remote decision service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to the decision service at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close is then a no-op.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// Close shuts down the connection the client created.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #region calls
// Decide runs one tick on the remote engine for symbol.
func (c *Client) Decide(ctx context.Context, symbol string, in signals.Input) (decision.Decision, error) {
	req, err := toStruct(struct {
		Symbol string        `json:"symbol"`
		Input  signals.Input `json:"input"`
	}{symbol, in})
	if err != nil {
		return decision.Decision{}, fmt.Errorf("encode decide: %w", err)
	}
	var out decision.Decision
	if err := c.call(ctx, MethodDecide, req, "decision", &out); err != nil {
		return decision.Decision{}, fmt.Errorf("decide rpc: %w", err)
	}
	return out, nil
}

// History fetches up to limit recent decisions, newest first.
func (c *Client) History(ctx context.Context, symbol string, limit int) ([]decision.Decision, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(symbol),
		"limit":  structpb.NewNumberValue(float64(limit)),
	}}
	var out []decision.Decision
	if err := c.call(ctx, MethodHistory, req, "decisions", &out); err != nil {
		return nil, fmt.Errorf("history rpc: %w", err)
	}
	return out, nil
}

// Config fetches the config of symbol's engine, or the template if symbol is empty.
func (c *Client) Config(ctx context.Context, symbol string) (engine.Config, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(symbol),
	}}
	var out engine.Config
	if err := c.call(ctx, MethodGetConfig, req, "config", &out); err != nil {
		return engine.Config{}, fmt.Errorf("get config rpc: %w", err)
	}
	return out, nil
}

// UpdateConfig applies p to every remote engine and returns the new template.
func (c *Client) UpdateConfig(ctx context.Context, p engine.ConfigPatch) (engine.Config, error) {
	req, err := toStruct(struct {
		Patch engine.ConfigPatch `json:"patch"`
	}{p})
	if err != nil {
		return engine.Config{}, fmt.Errorf("encode patch: %w", err)
	}
	var out engine.Config
	if err := c.call(ctx, MethodUpdateConfig, req, "config", &out); err != nil {
		return engine.Config{}, fmt.Errorf("update config rpc: %w", err)
	}
	return out, nil
}

// ClearHistory resets the remote engine for symbol.
func (c *Client) ClearHistory(ctx context.Context, symbol string) error {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol": structpb.NewStringValue(symbol),
	}}
	if err := c.cc.Invoke(ctx, MethodClearHistory, req, new(structpb.Struct)); err != nil {
		return fmt.Errorf("clear history rpc: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, req *structpb.Struct, field string, dst interface{}) error {
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		return err
	}
	return fromValue(resp.Fields[field], dst)
}

// #endregion calls
