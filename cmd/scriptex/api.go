package main

import (
	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/server/endpoints"
	"github.com/jackzampolin/scriptex/version"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{Version: version.GitRelease}) {
		registry.Register(ep)
	}

	apiCmd := registry.BuildCommands(getServerURL)
	// Persistent so all subcommands inherit it
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:5001", "Server URL",
	)
	rootCmd.AddCommand(apiCmd)
}
