package cmd

import (
	"context"

	"github.com/lepinkainen/libris/internal/api"
)

// ServeCmd runs the HTTP API until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address (default from server.addr)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	addr := c.Addr
	if addr == "" {
		addr = g.cfg.ServerAddr
	}
	return g.withApp(func(ctx context.Context, a *app) error {
		return api.NewServer(a.svc, a.metrics).ListenAndServe(ctx, addr)
	})
}
