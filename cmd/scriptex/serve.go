package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/server"
	"github.com/jackzampolin/scriptex/version"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scriptex server",
	Long: `Start the scriptex HTTP server.

The config file is watched while the server runs. Edits rebuild the model
provider and collaborator clients without a restart; an invalid edit is
logged and the running configuration is kept.

The server provides:
  - /generate_latex/{scriptId}          - Generate and save LaTeX
  - /generate_latex/{scriptId}/no_save  - Generate LaTeX without saving
  - /test_images/{scriptId}             - Inspect retrieved page images
  - /health                             - Collaborator health

Examples:
  scriptex serve                    # Start on the configured port (5001)
  scriptex serve --port 3000        # Start on custom port
  scriptex serve --host 127.0.0.1   # Bind to loopback only`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if used := mgr.ConfigFileUsed(); used != "" {
			logger.Info("loaded config", "file", used)
		}

		srv, err := server.New(ctx, server.Config{
			Host:          serveHost,
			Port:          servePort,
			ConfigManager: mgr,
			Version:       version.GitRelease,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default: server.port)")

	rootCmd.AddCommand(serveCmd)
}
