package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/mcpserver"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	var (
		stdio bool
		addr  string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the ask_documents and search_documents tools over MCP",
		Long: `Serve the ask_documents and search_documents tools over the Model Context Protocol.

By default the tools are served over SSE at the configured mcp.addr.
Use --stdio to speak JSON-RPC over stdin/stdout instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			mcpserver.Version = version
			srv := mcpserver.New(a.service, a.logger)
			if stdio {
				return server.ServeStdio(srv)
			}

			if addr == "" {
				addr = a.cfg.MCP.Addr
			}
			sse := mcpserver.NewSSEServer(srv, addr)
			errc := make(chan error, 1)
			go func() { errc <- sse.Start(addr) }()
			a.logger.Info("MCP server listening", zap.String("addr", addr))

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return sse.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve over stdin/stdout")
	cmd.Flags().StringVar(&addr, "addr", "", "SSE listen address (default from config)")
	return cmd
}
