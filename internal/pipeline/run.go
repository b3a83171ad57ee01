package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/scriptex/internal/archive"
	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/latex"
	"github.com/jackzampolin/scriptex/internal/providers"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeGenerated  Outcome = "generated"
	OutcomeSaved      Outcome = "saved"
	OutcomeNoImages   Outcome = "no_images"
	OutcomeSaveFailed Outcome = "save_failed"
	OutcomeFailed     Outcome = "failed"
)

// Messages reported in RunResult.Message.
const (
	MsgNoImages = "No images found for the given script_id"
)

// RunResult is the response for one script run.
type RunResult struct {
	Success          bool     `json:"success"`
	ScriptID         string   `json:"scriptId"`
	Message          string   `json:"message"`
	LatexContent     string   `json:"latexContent"`
	CompleteDocument string   `json:"completeDocument"`
	PagesProcessed   int      `json:"pagesProcessed"`
	Errors           []string `json:"errors"`

	Outcome Outcome `json:"-"`
	RunID   string  `json:"-"`
}

// Persister stores a generated document.
type Persister interface {
	Save(ctx context.Context, scriptID, latexContent, completeDocument string) error
}

// Config wires an Orchestrator to its collaborators.
type Config struct {
	Images    images.Source
	Model     providers.Transcriber
	Persister Persister         // required for persisting runs
	Archive   archive.Archiver  // optional
	Assembler latex.Assembler

	MaxConcurrency int           // pages in flight; 0 means 4
	ModelTimeout   time.Duration // per page
	ArchiveTimeout time.Duration // per archive put; 0 means none

	Logger   *slog.Logger
	NewRunID func() string // Optional (tests)
}

// Orchestrator runs the full pipeline for a script.
type Orchestrator struct {
	images    images.Source
	model     providers.Transcriber
	persister Persister
	archive   archive.Archiver
	assembler latex.Assembler

	maxConcurrency int
	modelTimeout   time.Duration
	archiveTimeout time.Duration

	logger   *slog.Logger
	newRunID func() string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	return &Orchestrator{
		images:         cfg.Images,
		model:          cfg.Model,
		persister:      cfg.Persister,
		archive:        cfg.Archive,
		assembler:      cfg.Assembler,
		maxConcurrency: cfg.MaxConcurrency,
		modelTimeout:   cfg.ModelTimeout,
		archiveTimeout: cfg.ArchiveTimeout,
		logger:         cfg.Logger,
		newRunID:       cfg.NewRunID,
	}
}

// Run fetches, transcribes and assembles a script, then persists the
// document when persist is true. Page failures never stop the run.
func (o *Orchestrator) Run(ctx context.Context, scriptID string, persist bool) *RunResult {
	runID := o.newRunID()
	logger := o.logger.With("script_id", scriptID, "run_id", runID)
	result := &RunResult{ScriptID: scriptID, Errors: []string{}, RunID: runID}
	start := time.Now()

	logger.Info("starting run", "persist", persist)

	pages, err := o.images.Fetch(ctx, scriptID)
	if err != nil {
		logger.Error("failed to fetch images", "error", err)
		return result.fail(err)
	}
	if len(pages) == 0 {
		logger.Warn("no images found")
		result.Outcome = OutcomeNoImages
		result.Message = MsgNoImages
		return result
	}

	pageResults := o.processPages(ctx, pages, runID, logger)
	if err := ctx.Err(); err != nil {
		logger.Warn("run cancelled, discarding partial results", "error", err)
		return result.fail(err)
	}

	sections := make([]latex.Section, len(pageResults))
	for i, pr := range pageResults {
		sections[i] = pr.Body()
		if !pr.Failed() {
			result.PagesProcessed++
		}
		if entry := pr.ErrorEntry(); entry != "" {
			result.Errors = append(result.Errors, entry)
		}
	}
	result.LatexContent = latex.Join(sections)
	result.CompleteDocument = o.assembler.Assemble(sections, scriptID)

	logger.Info("pages processed",
		"pages", len(pages),
		"succeeded", result.PagesProcessed,
		"errors", len(result.Errors),
		"elapsed", time.Since(start),
	)

	if !persist {
		result.Success = true
		result.Outcome = OutcomeGenerated
		result.Message = fmt.Sprintf("LaTeX generated successfully for script_id %s", scriptID)
		return result
	}

	if err := o.save(ctx, scriptID, result); err != nil {
		logger.Error("failed to save document", "error", err)
		result.Outcome = OutcomeSaveFailed
		result.Message = fmt.Sprintf("LaTeX generated but failed to save: %v", err)
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Success = true
	result.Outcome = OutcomeSaved
	result.Message = fmt.Sprintf("LaTeX generated and saved successfully for script_id %s", scriptID)

	if o.archive != nil {
		if err := o.archiveDocument(ctx, scriptID, runID, result.CompleteDocument); err != nil {
			logger.Warn("failed to archive document", "error", err)
			result.Errors = append(result.Errors, err.Error())
		}
	}
	return result
}

func (o *Orchestrator) archiveDocument(ctx context.Context, scriptID, runID, doc string) error {
	if o.archiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.archiveTimeout)
		defer cancel()
	}
	_, err := o.archive.Put(ctx, scriptID, runID, doc)
	return err
}

func (o *Orchestrator) save(ctx context.Context, scriptID string, result *RunResult) error {
	if o.persister == nil {
		return fmt.Errorf("persistence is not configured")
	}
	return o.persister.Save(ctx, scriptID, result.LatexContent, result.CompleteDocument)
}

// processPages runs every page with bounded concurrency. Each result lands
// in the slot of its page so output order equals page order.
func (o *Orchestrator) processPages(ctx context.Context, pages []images.Page, runID string, logger *slog.Logger) []PageResult {
	results := make([]PageResult, len(pages))

	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, page := range pages {
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = PageResult{Index: page.Index, Err: ctx.Err()}
				return nil
			}
			logger.Info("processing page", "page", page.Index, "total", len(pages))
			results[i] = ProcessPage(ctx, o.model, page, PageOptions{
				Timeout: o.modelTimeout,
				RunID:   runID,
				Logger:  logger,
			})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *RunResult) fail(err error) *RunResult {
	r.Outcome = OutcomeFailed
	r.Message = fmt.Sprintf("Error: %v", err)
	r.Errors = append(r.Errors, err.Error())
	return r
}
