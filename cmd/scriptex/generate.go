package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scriptex/internal/api"
	"github.com/jackzampolin/scriptex/internal/home"
	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/providers"
	"github.com/jackzampolin/scriptex/internal/svcctx"
)

var (
	generateNoSave bool
	generateOut    string
	generateKeep   bool
	imagesThumbs   bool
	imagesWidth    int
)

var generateCmd = &cobra.Command{
	Use:   "generate <scriptId>",
	Short: "Generate LaTeX for a script without a running server",
	Long: `Run the transcription pipeline for one script in-process.

The collaborator services and model provider come from the config file,
exactly as the server would use them.

Examples:
  scriptex generate S123                    # Generate and save
  scriptex generate S123 --no-save -f a.tex # Preview into a file
  scriptex generate S123 --keep             # Also keep a copy under ~/.scriptex/documents`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scriptID := strings.TrimSpace(args[0])
		if scriptID == "" {
			return fmt.Errorf("script id is required")
		}

		svcs, err := localServices(cmd.Context())
		if err != nil {
			return err
		}

		result := svcs.Pipeline.Run(cmd.Context(), scriptID, !generateNoSave)
		if generateOut != "" && result.CompleteDocument != "" {
			if err := api.WriteText(generateOut, result.CompleteDocument); err != nil {
				return err
			}
		}
		if generateKeep && result.CompleteDocument != "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			path, err := h.SaveDocument(scriptID, result.CompleteDocument, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "kept %s\n", path)
		}
		if err := api.Output(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("run %s: %s", result.Outcome, result.Message)
		}
		return nil
	},
}

var imagesCmd = &cobra.Command{
	Use:   "images <scriptId>",
	Short: "Fetch a script's page images and report what was found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := localServices(cmd.Context())
		if err != nil {
			return err
		}

		pages, err := svcs.Images.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		report := images.NewReport(args[0], pages, imagesWidth)
		if !imagesThumbs {
			report.Thumbnails = nil
		}
		return api.Output(report)
	},
}

// localServices builds the same services the server would, for one-shot use.
func localServices(ctx context.Context) (*svcctx.Services, error) {
	mgr, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()

	registry, err := providers.NewRegistry(ctx, cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model provider: %w", err)
	}
	logger.Debug("model provider ready", slog.String("provider", registry.Name()))

	return svcctx.New(ctx, cfg, registry, logger)
}

func init() {
	generateCmd.Flags().BoolVar(&generateNoSave, "no-save", false, "Do not send the result to the persistence service")
	generateCmd.Flags().StringVarP(&generateOut, "out", "f", "", "Write the complete document to this file")
	generateCmd.Flags().BoolVar(&generateKeep, "keep", false, "Keep a copy of the document in the home directory")

	imagesCmd.Flags().BoolVar(&imagesThumbs, "thumbnails", false, "Include thumbnail data URLs in the output")
	imagesCmd.Flags().IntVar(&imagesWidth, "width", images.DefaultThumbnailWidth, "Thumbnail width in pixels")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(imagesCmd)
}
