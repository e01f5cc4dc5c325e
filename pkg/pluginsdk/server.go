// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package pluginsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	hashiplug "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// pluginServer runs inside the plugin process and drives the wrapped
// wizard.Plugin on behalf of the host.
type pluginServer struct {
	impl   wizard.Plugin
	broker *hashiplug.GRPCBroker

	mu   sync.Mutex
	host *grpc.ClientConn
}

func newPluginServer(impl any, broker *hashiplug.GRPCBroker) (*pluginServer, error) {
	p, ok := impl.(wizard.Plugin)
	if !ok || p == nil {
		return nil, errors.New("pluginsdk: Impl must implement wizard.Plugin")
	}
	return &pluginServer{impl: p, broker: broker}, nil
}

func (s *pluginServer) describe(_ context.Context, _ *empty) (*describeResponse, error) {
	hooks := wizard.HookSetOf(s.impl).Slice()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.String()
	}
	return &describeResponse{Hooks: names}, nil
}

func (s *pluginServer) lifecycle(ctx context.Context, req *lifecycleRequest) (resp *lifecycleResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, status.Errorf(codes.Internal, "%s panicked: %v", req.Event, r)
		}
	}()

	var cbErr error
	switch req.Event {
	case EventLoad:
		bridge, err := s.dialHost(req)
		if err != nil {
			return nil, err
		}
		cbErr = s.impl.OnLoad(ctx, bridge)
	case EventStart:
		cbErr = s.impl.OnStart(ctx)
	case EventAllLoaded:
		s.impl.OnAllLoaded(ctx)
	case EventPause:
		s.impl.OnPause(ctx)
	case EventUnpause:
		s.impl.OnUnpause(ctx)
	case EventEnd:
		cbErr = s.impl.OnEnd(ctx)
	case EventUnload:
		cbErr = s.impl.OnUnload(ctx)
		s.closeHost()
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown lifecycle event %q", req.Event)
	}
	if cbErr != nil {
		return &lifecycleResponse{Error: cbErr.Error()}, nil
	}
	return &lifecycleResponse{}, nil
}

func (s *pluginServer) dialHost(req *lifecycleRequest) (wizard.HostBridge, error) {
	conn, err := s.broker.Dial(req.Broker)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "dial host: %v", err)
	}
	s.mu.Lock()
	if s.host != nil {
		_ = s.host.Close()
	}
	s.host = conn
	s.mu.Unlock()
	return newRemoteBridge(wizard.PluginID(req.Self), conn), nil
}

func (s *pluginServer) closeHost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.host != nil {
		_ = s.host.Close()
		s.host = nil
	}
}

func (s *pluginServer) hook(ctx context.Context, req *hookRequest) (resp *hookResponse, err error) {
	h, ok := wizard.ParseHook(req.Hook)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown hook %q", req.Hook)
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, status.Errorf(codes.Internal, "%s panicked: %v", h, r)
		}
	}()

	if h == wizard.HookClientConnect {
		cl, ok := s.impl.(wizard.ClientListener)
		if !ok {
			return &hookResponse{Result: wizard.Continue.String(), Accept: true}, nil
		}
		args := new(wizard.ConnectArgs)
		if err := decodeArgs(req.Args, args); err != nil {
			return nil, err
		}
		accept := cl.OnClientConnect(ctx, args)
		return encodeReply(wizard.Continue, accept, args)
	}

	args, result, err := s.dispatch(ctx, h, req.Args)
	if err != nil {
		return nil, err
	}
	return encodeReply(result, true, args)
}

// dispatch decodes the hook arguments and calls the matching listener
// method. Hooks the plugin does not implement yield Continue.
func (s *pluginServer) dispatch(ctx context.Context, h wizard.Hook, raw json.RawMessage) (any, wizard.Result, error) {
	sl, isServer := s.impl.(wizard.ServerListener)
	cl, isClient := s.impl.(wizard.ClientListener)
	if (h < wizard.HookClientConnect && !isServer) || (h >= wizard.HookClientConnect && !isClient) {
		return nil, wizard.Continue, nil
	}

	switch h {
	case wizard.HookConfigsExecuted:
		return nil, sl.OnConfigsExecuted(ctx), nil
	case wizard.HookLevelStart:
		return nil, sl.OnLevelStart(ctx), nil
	case wizard.HookLevelShutdown:
		return nil, sl.OnLevelShutdown(ctx), nil
	case wizard.HookLevelInit:
		return call(raw, func(a *wizard.LevelArgs) wizard.Result { return sl.OnLevelInit(ctx, a) })
	case wizard.HookEntityCreated:
		return call(raw, func(a *wizard.EntityArgs) wizard.Result { return sl.OnEntityCreated(ctx, a) })
	case wizard.HookEntityDestroyed:
		return call(raw, func(a *wizard.EntityArgs) wizard.Result { return sl.OnEntityDestroyed(ctx, a) })
	case wizard.HookClientConnected:
		return call(raw, func(a *wizard.ClientArgs) wizard.Result { return cl.OnClientConnected(ctx, a) })
	case wizard.HookClientDisconnect:
		return call(raw, func(a *wizard.ClientArgs) wizard.Result { return cl.OnClientDisconnect(ctx, a) })
	case wizard.HookClientDisconnected:
		return call(raw, func(a *wizard.ClientArgs) wizard.Result { return cl.OnClientDisconnected(ctx, a) })
	case wizard.HookClientPutInServer:
		return call(raw, func(a *wizard.PutInServerArgs) wizard.Result { return cl.OnClientPutInServer(ctx, a) })
	case wizard.HookClientActive:
		return call(raw, func(a *wizard.ActiveArgs) wizard.Result { return cl.OnClientActive(ctx, a) })
	case wizard.HookClientSettingsChanged:
		return call(raw, func(a *wizard.ClientArgs) wizard.Result { return cl.OnClientSettingsChanged(ctx, a) })
	case wizard.HookClientAuthorized:
		return call(raw, func(a *wizard.AuthArgs) wizard.Result { return cl.OnClientAuthorized(ctx, a) })
	case wizard.HookClientCommand:
		return call(raw, func(a *wizard.CommandArgs) wizard.Result { return cl.OnClientCommand(ctx, a) })
	default:
		return nil, wizard.Continue, nil
	}
}

func call[A any](raw json.RawMessage, fn func(*A) wizard.Result) (any, wizard.Result, error) {
	args := new(A)
	if err := decodeArgs(raw, args); err != nil {
		return nil, wizard.Continue, err
	}
	return args, fn(args), nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode args: %v", err)
	}
	return nil
}

// encodeReply returns the arguments only when the host will read them back.
func encodeReply(result wizard.Result, accept bool, args any) (*hookResponse, error) {
	resp := &hookResponse{Result: result.String(), Accept: accept}
	_, isConnect := args.(*wizard.ConnectArgs)
	if args == nil || (result != wizard.Changed && !isConnect) {
		return resp, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode args: %v", err))
	}
	resp.Args = b
	return resp, nil
}
