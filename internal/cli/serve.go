package cli

import (
	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/mcptools"
	"github.com/dshills/marginalia/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{}
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}
		all, _, err := loadPersonas(cfg)
		if err != nil {
			return err
		}
		c, err := openCache(cfg)
		if err != nil {
			return fail(ExitRuntimeError, err)
		}

		srv := server.New(server.Options{
			Config:   cfg,
			Version:  version,
			Personas: all,
			Cache:    c,
			Factory:  providerFactory,
		})
		if err := srv.Run(cmd.Context()); err != nil {
			return fail(ExitRuntimeError, err)
		}
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve marginalia tools over MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		all, _, err := loadPersonas(cfg)
		if err != nil {
			return err
		}
		c, err := openCache(cfg)
		if err != nil {
			return fail(ExitRuntimeError, err)
		}

		svc := mcptools.NewService(mcptools.Options{
			Config:   cfg,
			Personas: all,
			Factory:  providerFactory,
			Cache:    c,
			Version:  version,
		})
		if err := mcptools.Run(cmd.Context(), svc); err != nil && cmd.Context().Err() == nil {
			return fail(ExitRuntimeError, err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default: server.addr)")
}
