// Package pipeline turns a script's page images into a LaTeX document.
//
// ProcessPage handles one page: transcribe, sanitize, validate, label.
// Orchestrator.Run fans pages out concurrently, assembles the document in
// page order and optionally persists it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/latex"
	"github.com/jackzampolin/scriptex/internal/providers"
)

// PageResult is the outcome of one page. Exactly one of Section or Err is
// meaningful: a failed page carries Err and renders a failure comment.
type PageResult struct {
	Index   int
	Section latex.Section
	Warning string // "Page i: <diagnostic>" when validation flagged the text
	Err     error
}

// Failed reports whether the page could not be transcribed.
func (r PageResult) Failed() bool {
	return r.Err != nil
}

// Body returns the section to render, a failure comment for failed pages.
func (r PageResult) Body() latex.Section {
	if r.Failed() {
		return latex.FailedSection(r.Index, r.Err.Error())
	}
	return r.Section
}

// ErrorEntry returns the line recorded in the run's errors, if any.
func (r PageResult) ErrorEntry() string {
	if r.Failed() {
		return latex.FailureMessage(r.Index, r.Err.Error())
	}
	return r.Warning
}

// PageOptions tunes a single page call.
type PageOptions struct {
	Timeout time.Duration // model call timeout; 0 means none
	RunID   string
	Logger  *slog.Logger
}

// ProcessPage transcribes one page. It never returns an error: failures,
// including panics, are captured in the result.
func ProcessPage(ctx context.Context, model providers.Transcriber, page images.Page, opts PageOptions) (result PageResult) {
	result.Index = page.Index
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("page", page.Index)

	defer func() {
		if r := recover(); r != nil {
			result = PageResult{Index: page.Index, Err: fmt.Errorf("panic: %v", r)}
			logger.Error("page panicked", "panic", r)
		}
	}()

	raw, err := page.Bytes()
	if err != nil {
		result.Err = fmt.Errorf("invalid image data: %w", err)
		logger.Error("failed to decode page image", "error", err)
		return result
	}

	callCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := model.Transcribe(callCtx, &providers.TranscribeRequest{
		Image:     raw,
		MediaType: images.MediaType(raw),
		PageNum:   page.Index,
		RequestID: fmt.Sprintf("%s-p%d", opts.RunID, page.Index),
	})
	if err != nil {
		result.Err = err
		logger.Error("page transcription failed", "error", err, "elapsed", time.Since(start))
		return result
	}

	text := latex.Sanitize(resp.Text)
	if v := latex.Validate(text); !v.Valid {
		text += "\n% Syntax warning: " + v.Diagnostic
		result.Warning = fmt.Sprintf("Page %d: %s", page.Index, v.Diagnostic)
		logger.Warn("page syntax warning", "diagnostic", v.Diagnostic)
	}
	result.Section = latex.NewSection(page.Index, text)

	logger.Debug("page transcribed",
		"model", resp.ModelUsed,
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"elapsed", time.Since(start),
	)
	return result
}
