// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package pluginsdk

import (
	"context"
	"encoding/json"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// HandshakeConfig is the go-plugin handshake configuration.
// Both host and plugins must use the same values.
var HandshakeConfig = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WIZARD_PLUGIN",
	MagicCookieValue: "wizard-v1",
}

// PluginName is the key a binary plugin is dispensed under.
const PluginName = "plugin"

// Event names a lifecycle callback.
type Event string

// Lifecycle events sent to a binary plugin. EventLoad is sent through
// Client.Load, which also hands the plugin its host bridge.
const (
	EventLoad      Event = "load"
	EventStart     Event = "start"
	EventAllLoaded Event = "all_loaded"
	EventPause     Event = "pause"
	EventUnpause   Event = "unpause"
	EventEnd       Event = "end"
	EventUnload    Event = "unload"
)

// Service and method names. Every message travels as a
// google.protobuf.BytesValue holding a JSON document.
const (
	pluginServiceName = "wizard.plugin.v1.Plugin"
	hostServiceName   = "wizard.plugin.v1.Host"

	methodDescribe   = "/" + pluginServiceName + "/Describe"
	methodLifecycle  = "/" + pluginServiceName + "/Lifecycle"
	methodHook       = "/" + pluginServiceName + "/Hook"
	methodFindPlugin = "/" + hostServiceName + "/FindPlugin"
	methodLog        = "/" + hostServiceName + "/Log"
)

type empty struct{}

type describeResponse struct {
	Hooks []string `json:"hooks"`
}

type lifecycleRequest struct {
	Event  Event  `json:"event"`
	Self   uint64 `json:"self,omitempty"`
	Broker uint32 `json:"broker,omitempty"`
}

type lifecycleResponse struct {
	Error string `json:"error,omitempty"`
}

type hookRequest struct {
	Hook string          `json:"hook"`
	Args json.RawMessage `json:"args,omitempty"`
}

type hookResponse struct {
	Result string          `json:"result"`
	Accept bool            `json:"accept,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

type findPluginRequest struct {
	Name string `json:"name"`
}

type findPluginResponse struct {
	ID uint64 `json:"id"`
}

type logRequest struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs,omitempty"`
}

// invoke performs a unary call with JSON payloads.
func invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req, resp any) error {
	in, err := json.Marshal(req)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	out := new(wrapperspb.BytesValue)
	if err := conn.Invoke(ctx, method, wrapperspb.Bytes(in), out); err != nil {
		return err //nolint:wrapcheck // callers attach plugin context
	}
	if resp == nil || len(out.GetValue()) == 0 {
		return nil
	}
	if err := json.Unmarshal(out.GetValue(), resp); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}

// unary adapts a typed handler to a grpc.MethodHandler.
func unary[S any, Req any, Resp any](method string, fn func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.BytesValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := func(ctx context.Context, raw any) (any, error) {
			var req Req
			if b := raw.(*wrapperspb.BytesValue).GetValue(); len(b) > 0 {
				if err := json.Unmarshal(b, &req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
			}
			resp, err := fn(srv.(S), ctx, &req)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(resp)
			if err != nil {
				return nil, status.Error(codes.Internal, err.Error())
			}
			return wrapperspb.Bytes(b), nil
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: method}, call)
	}
}

// pluginService is served by the plugin process.
type pluginService interface {
	describe(ctx context.Context, req *empty) (*describeResponse, error)
	lifecycle(ctx context.Context, req *lifecycleRequest) (*lifecycleResponse, error)
	hook(ctx context.Context, req *hookRequest) (*hookResponse, error)
}

var pluginServiceDesc = grpc.ServiceDesc{
	ServiceName: pluginServiceName,
	HandlerType: (*pluginService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: unary(methodDescribe, pluginService.describe)},
		{MethodName: "Lifecycle", Handler: unary(methodLifecycle, pluginService.lifecycle)},
		{MethodName: "Hook", Handler: unary(methodHook, pluginService.hook)},
	},
}

// hostService is served by the host over the go-plugin broker.
type hostService interface {
	findPlugin(ctx context.Context, req *findPluginRequest) (*findPluginResponse, error)
	log(ctx context.Context, req *logRequest) (*empty, error)
}

var hostServiceDesc = grpc.ServiceDesc{
	ServiceName: hostServiceName,
	HandlerType: (*hostService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FindPlugin", Handler: unary(methodFindPlugin, hostService.findPlugin)},
		{MethodName: "Log", Handler: unary(methodLog, hostService.log)},
	},
}

// GRPCPlugin implements go-plugin's Plugin interface for gRPC. The plugin
// process sets Impl; the host dispenses a *Client.
type GRPCPlugin struct {
	hashiplug.NetRPCUnsupportedPlugin
	Impl any
}

// GRPCServer registers the plugin service (called by the plugin process).
func (p *GRPCPlugin) GRPCServer(broker *hashiplug.GRPCBroker, s *grpc.Server) error {
	srv, err := newPluginServer(p.Impl, broker)
	if err != nil {
		return err
	}
	s.RegisterService(&pluginServiceDesc, srv)
	return nil
}

// GRPCClient returns the host-side client (called by the host process).
func (p *GRPCPlugin) GRPCClient(_ context.Context, broker *hashiplug.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &Client{conn: c, broker: broker}, nil
}
