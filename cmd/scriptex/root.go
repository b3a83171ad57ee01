package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/config"
	"github.com/jackzampolin/scriptex/internal/home"
	"github.com/jackzampolin/scriptex/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "scriptex",
	Short: "Transcribe handwritten answer scripts into LaTeX",
	Long: `Scriptex turns scanned pages of handwritten answer scripts into a
compilable LaTeX document using a vision language model.

For every script it:
  - Fetches the page images from the image source service
  - Transcribes each page concurrently with the configured model
  - Sanitizes and validates the LaTeX of every page
  - Assembles a complete document and saves it to the persistence service`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.scriptex/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "scriptex home directory (default: ~/.scriptex)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and environment, returning a manager and
// a text logger at the configured level.
func loadConfig() (*config.Manager, *slog.Logger, error) {
	file := cfgFile
	if file == "" && homeDir != "" {
		h, err := home.New(homeDir)
		if err != nil {
			return nil, nil, err
		}
		if h.ConfigExists() {
			file = h.ConfigPath()
		}
	}

	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: mgr.Get().SlogLevel(),
	}))
	mgr.SetLogger(logger)
	return mgr, logger, nil
}
