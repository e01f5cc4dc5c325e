// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

package pluginsdk

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"

	"github.com/wizardmod/wizard/pkg/wizard"
)

// bridgeTimeout bounds a call from the plugin back into the host.
const bridgeTimeout = 5 * time.Second

// remoteBridge is the wizard.HostBridge a binary plugin receives in OnLoad.
type remoteBridge struct {
	self   wizard.PluginID
	conn   grpc.ClientConnInterface
	logger *slog.Logger
}

func newRemoteBridge(self wizard.PluginID, conn grpc.ClientConnInterface) *remoteBridge {
	return &remoteBridge{
		self:   self,
		conn:   conn,
		logger: slog.New(&hostHandler{conn: conn}),
	}
}

func (b *remoteBridge) Self() wizard.PluginID { return b.self }

func (b *remoteBridge) FindPluginByName(name string) wizard.PluginID {
	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	defer cancel()
	var resp findPluginResponse
	if err := invoke(ctx, b.conn, methodFindPlugin, &findPluginRequest{Name: name}, &resp); err != nil {
		return wizard.NullPlugin
	}
	return wizard.PluginID(resp.ID)
}

func (b *remoteBridge) Logger() *slog.Logger { return b.logger }

// hostHandler forwards log records to the host, which applies its own
// level filtering and plugin scoping.
type hostHandler struct {
	conn   grpc.ClientConnInterface
	attrs  []slog.Attr
	groups []string
}

func (h *hostHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *hostHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		flatten(attrs, "", a)
	}
	prefix := groupPrefix(h.groups)
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, prefix, a)
		return true
	})
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bridgeTimeout)
	defer cancel()
	return invoke(ctx, h.conn, methodLog, &logRequest{
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	}, nil)
}

func (h *hostHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	prefix := groupPrefix(h.groups)
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *hostHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(append([]string(nil), h.groups...), name)
	return &c
}

func groupPrefix(groups []string) string {
	var p string
	for _, g := range groups {
		p += g + "."
	}
	return p
}

func flatten(dst map[string]string, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	dst[prefix+a.Key] = v.String()
}
