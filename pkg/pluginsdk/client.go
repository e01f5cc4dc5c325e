// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package pluginsdk

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"
	"google.golang.org/grpc"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// Client is the host side of a binary plugin connection.
type Client struct {
	conn   grpc.ClientConnInterface
	broker *hashiplug.GRPCBroker

	mu   sync.Mutex
	host *grpc.Server
}

// HookReply is a plugin's answer to a hook.
type HookReply struct {
	Result wizard.Result
	// Accept is the OnClientConnect verdict.
	Accept bool
	// Args holds the plugin's edited arguments for Changed results and
	// for client_connect.
	Args json.RawMessage
}

// Describe asks the plugin for the hooks it listens to.
func (c *Client) Describe(ctx context.Context) (wizard.HookSet, error) {
	var resp describeResponse
	if err := invoke(ctx, c.conn, methodDescribe, &empty{}, &resp); err != nil {
		return 0, oops.In("pluginsdk").Wrapf(err, "describe")
	}
	var set wizard.HookSet
	for _, name := range resp.Hooks {
		if h, ok := wizard.ParseHook(name); ok {
			set = set.With(h)
		}
	}
	return set, nil
}

// Load serves host on the broker and sends the load event. The plugin
// reaches host through the bridge handed to its OnLoad.
func (c *Client) Load(ctx context.Context, host wizard.HostBridge) error {
	if host == nil {
		return oops.In("pluginsdk").New("load requires a host bridge")
	}
	id := c.broker.NextId()
	ready := make(chan struct{})
	go c.broker.AcceptAndServe(id, func(opts []grpc.ServerOption) *grpc.Server {
		s := grpc.NewServer(opts...)
		s.RegisterService(&hostServiceDesc, &hostServer{bridge: host})
		c.mu.Lock()
		if c.host != nil {
			c.host.Stop()
		}
		c.host = s
		c.mu.Unlock()
		close(ready)
		return s
	})

	select {
	case <-ready:
	case <-ctx.Done():
		return oops.In("pluginsdk").Wrapf(ctx.Err(), "serve host bridge")
	}
	return c.send(ctx, &lifecycleRequest{Event: EventLoad, Self: uint64(host.Self()), Broker: id})
}

// Lifecycle sends a lifecycle event other than load. A non-nil error is
// either a transport failure or the error the plugin's callback returned.
func (c *Client) Lifecycle(ctx context.Context, ev Event) error {
	if ev == EventLoad {
		return oops.In("pluginsdk").New("use Load for the load event")
	}
	return c.send(ctx, &lifecycleRequest{Event: ev})
}

func (c *Client) send(ctx context.Context, req *lifecycleRequest) error {
	var resp lifecycleResponse
	if err := invoke(ctx, c.conn, methodLifecycle, req, &resp); err != nil {
		return oops.In("pluginsdk").With("event", req.Event).Wrapf(err, "lifecycle")
	}
	if resp.Error != "" {
		return oops.In("pluginsdk").With("event", req.Event).New(resp.Error)
	}
	return nil
}

// Hook delivers a hook with its arguments. args may be nil for hooks
// without payload.
func (c *Client) Hook(ctx context.Context, h wizard.Hook, args any) (*HookReply, error) {
	req := &hookRequest{Hook: h.String()}
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, oops.In("pluginsdk").With("hook", h.String()).Wrapf(err, "encode args")
		}
		req.Args = b
	}
	var resp hookResponse
	if err := invoke(ctx, c.conn, methodHook, req, &resp); err != nil {
		return nil, oops.In("pluginsdk").With("hook", h.String()).Wrapf(err, "hook")
	}
	result, ok := wizard.ParseResult(resp.Result)
	if !ok {
		result = wizard.Result(0xff)
	}
	return &HookReply{Result: result, Accept: resp.Accept, Args: resp.Args}, nil
}

// Close stops serving the host bridge.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.host != nil {
		c.host.Stop()
		c.host = nil
	}
	return nil
}

// hostServer exposes a wizard.HostBridge to the plugin process.
type hostServer struct {
	bridge wizard.HostBridge
}

func (s *hostServer) findPlugin(_ context.Context, req *findPluginRequest) (*findPluginResponse, error) {
	return &findPluginResponse{ID: uint64(s.bridge.FindPluginByName(req.Name))}, nil
}

func (s *hostServer) log(ctx context.Context, req *logRequest) (*empty, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(req.Level)); err != nil {
		level = slog.LevelInfo
	}
	args := make([]any, 0, 2*len(req.Attrs))
	for k, v := range req.Attrs {
		args = append(args, k, v)
	}
	s.bridge.Logger().Log(ctx, level, req.Message, args...)
	return &empty{}, nil
}
