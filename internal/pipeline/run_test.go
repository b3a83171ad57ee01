package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/latex"
	"github.com/jackzampolin/scriptex/internal/providers"
)

type fakeSource struct {
	pages []images.Page
	err   error
}

func (f *fakeSource) Fetch(context.Context, string) ([]images.Page, error) {
	return f.pages, f.err
}

type fakePersister struct {
	mu     sync.Mutex
	err    error
	calls  int
	latex  string
	doc    string
	script string
}

func (f *fakePersister) Save(_ context.Context, scriptID, latexContent, completeDocument string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.script, f.latex, f.doc = scriptID, latexContent, completeDocument
	return f.err
}

type fakeArchive struct {
	err   error
	runID string
	doc   string
	hang  bool // block until ctx is done
}

func (f *fakeArchive) Put(ctx context.Context, scriptID, runID, document string) (string, error) {
	f.runID, f.doc = runID, document
	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return scriptID + "/" + runID + ".tex", nil
}

// funcTranscriber adapts a function to providers.Transcriber.
type funcTranscriber func(ctx context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error)

func (f funcTranscriber) Name() string                      { return "func" }
func (f funcTranscriber) HealthCheck(context.Context) error { return nil }
func (f funcTranscriber) Transcribe(ctx context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
	return f(ctx, req)
}

func makePages(n int) []images.Page {
	pages := make([]images.Page, n)
	for i := range pages {
		pages[i] = images.Page{
			Number:  i + 1,
			Index:   i + 1,
			Encoded: base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("image-%d", i+1))),
		}
	}
	return pages
}

func fixedAssembler() latex.Assembler {
	return latex.Assembler{Now: func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }}
}

func newTestOrchestrator(src images.Source, model providers.Transcriber, p Persister) *Orchestrator {
	return NewOrchestrator(Config{
		Images:         src,
		Model:          model,
		Persister:      p,
		Assembler:      fixedAssembler(),
		MaxConcurrency: 3,
		NewRunID:       func() string { return "run-1" },
	})
}

func quickMock() *providers.MockTranscriber {
	m := providers.NewMockTranscriber()
	m.Latency = 0
	return m
}

func TestRun_NoImages(t *testing.T) {
	model := quickMock()
	persister := &fakePersister{}
	o := newTestOrchestrator(&fakeSource{}, model, persister)

	result := o.Run(context.Background(), "S1", true)

	if result.Success {
		t.Error("Success = true, want false")
	}
	if result.Outcome != OutcomeNoImages {
		t.Errorf("Outcome = %s, want %s", result.Outcome, OutcomeNoImages)
	}
	if result.Message != MsgNoImages {
		t.Errorf("Message = %q", result.Message)
	}
	if result.PagesProcessed != 0 || result.LatexContent != "" || result.CompleteDocument != "" {
		t.Errorf("unexpected content in %+v", result)
	}
	if model.RequestCount() != 0 || persister.calls != 0 {
		t.Error("collaborators called for empty script")
	}
}

func TestRun_FetchError(t *testing.T) {
	o := newTestOrchestrator(&fakeSource{err: errors.New("connection refused")}, quickMock(), nil)

	result := o.Run(context.Background(), "S1", false)

	if result.Outcome != OutcomeFailed || result.Success {
		t.Errorf("Outcome/Success = %s/%v", result.Outcome, result.Success)
	}
	if result.Message != "Error: connection refused" {
		t.Errorf("Message = %q", result.Message)
	}
	if len(result.Errors) != 1 || result.Errors[0] != "connection refused" {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestRun_PageFailureIsolated(t *testing.T) {
	model := quickMock()
	model.FailPages = []int{2}
	o := newTestOrchestrator(&fakeSource{pages: makePages(3)}, model, nil)

	result := o.Run(context.Background(), "S1", false)

	if !result.Success || result.Outcome != OutcomeGenerated {
		t.Fatalf("Success/Outcome = %v/%s", result.Success, result.Outcome)
	}
	if result.Message != "LaTeX generated successfully for script_id S1" {
		t.Errorf("Message = %q", result.Message)
	}
	if result.PagesProcessed != 2 {
		t.Errorf("PagesProcessed = %d, want 2", result.PagesProcessed)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "Failed to process page 2: ") {
		t.Errorf("Errors = %v", result.Errors)
	}

	p1 := strings.Index(result.LatexContent, "% ===== Page 1 =====")
	p2 := strings.Index(result.LatexContent, "% Failed to process page 2: ")
	p3 := strings.Index(result.LatexContent, "% ===== Page 3 =====")
	if p1 < 0 || p2 < 0 || p3 < 0 || !(p1 < p2 && p2 < p3) {
		t.Errorf("sections missing or out of order: %d %d %d\n%s", p1, p2, p3, result.LatexContent)
	}
	if !strings.Contains(result.CompleteDocument, result.LatexContent) {
		t.Error("complete document does not embed latex content")
	}
}

func TestRun_OrderIndependentOfCompletion(t *testing.T) {
	// Earlier pages finish last.
	model := funcTranscriber(func(ctx context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
		time.Sleep(time.Duration(5-req.PageNum) * 10 * time.Millisecond)
		return &providers.TranscribeResult{Text: fmt.Sprintf("body %d", req.PageNum)}, nil
	})
	o := newTestOrchestrator(&fakeSource{pages: makePages(4)}, model, nil)

	result := o.Run(context.Background(), "S1", false)

	want := strings.Join([]string{
		"% ===== Page 1 =====\nbody 1\n",
		"% ===== Page 2 =====\nbody 2\n",
		"% ===== Page 3 =====\nbody 3\n",
		"% ===== Page 4 =====\nbody 4\n",
	}, "\n\n")
	if result.LatexContent != want {
		t.Errorf("LatexContent =\n%q\nwant\n%q", result.LatexContent, want)
	}
}

func TestRun_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	model := funcTranscriber(func(ctx context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &providers.TranscribeResult{Text: "x"}, nil
	})
	o := NewOrchestrator(Config{
		Images:         &fakeSource{pages: makePages(8)},
		Model:          model,
		MaxConcurrency: 2,
	})

	result := o.Run(context.Background(), "S1", false)

	if result.PagesProcessed != 8 {
		t.Errorf("PagesProcessed = %d, want 8", result.PagesProcessed)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestRun_Persist(t *testing.T) {
	t.Run("saved", func(t *testing.T) {
		persister := &fakePersister{}
		arch := &fakeArchive{}
		o := NewOrchestrator(Config{
			Images:    &fakeSource{pages: makePages(2)},
			Model:     quickMock(),
			Persister: persister,
			Archive:   arch,
			Assembler: fixedAssembler(),
			NewRunID:  func() string { return "run-7" },
		})

		result := o.Run(context.Background(), "S1", true)

		if !result.Success || result.Outcome != OutcomeSaved {
			t.Fatalf("Success/Outcome = %v/%s (%v)", result.Success, result.Outcome, result.Errors)
		}
		if result.Message != "LaTeX generated and saved successfully for script_id S1" {
			t.Errorf("Message = %q", result.Message)
		}
		if persister.calls != 1 || persister.latex != result.LatexContent || persister.doc != result.CompleteDocument {
			t.Error("persister did not receive the generated content")
		}
		if arch.runID != "run-7" || arch.doc != result.CompleteDocument {
			t.Errorf("archive got run %q", arch.runID)
		}
	})

	t.Run("archive put is bounded", func(t *testing.T) {
		arch := &fakeArchive{hang: true}
		o := NewOrchestrator(Config{
			Images:         &fakeSource{pages: makePages(1)},
			Model:          quickMock(),
			Persister:      &fakePersister{},
			Archive:        arch,
			ArchiveTimeout: 20 * time.Millisecond,
		})

		start := time.Now()
		result := o.Run(context.Background(), "S1", true)

		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Fatalf("run took %v, archive timeout not applied", elapsed)
		}
		if !result.Success || result.Outcome != OutcomeSaved {
			t.Fatalf("Success/Outcome = %v/%s", result.Success, result.Outcome)
		}
		if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], context.DeadlineExceeded.Error()) {
			t.Errorf("Errors = %v, want deadline exceeded", result.Errors)
		}
	})

	t.Run("save failure keeps content", func(t *testing.T) {
		persister := &fakePersister{err: errors.New("API error: 400 - bad")}
		arch := &fakeArchive{}
		o := NewOrchestrator(Config{
			Images:    &fakeSource{pages: makePages(2)},
			Model:     quickMock(),
			Persister: persister,
			Archive:   arch,
		})

		result := o.Run(context.Background(), "S1", true)

		if result.Success || result.Outcome != OutcomeSaveFailed {
			t.Fatalf("Success/Outcome = %v/%s", result.Success, result.Outcome)
		}
		if result.Message != "LaTeX generated but failed to save: API error: 400 - bad" {
			t.Errorf("Message = %q", result.Message)
		}
		if result.LatexContent == "" || result.CompleteDocument == "" {
			t.Error("content dropped on save failure")
		}
		if result.PagesProcessed != 2 {
			t.Errorf("PagesProcessed = %d, want 2", result.PagesProcessed)
		}
		if len(result.Errors) != 1 {
			t.Errorf("Errors = %v", result.Errors)
		}
		if arch.doc != "" {
			t.Error("archived a document that was not saved")
		}
	})

	t.Run("archive failure is reported but not fatal", func(t *testing.T) {
		o := NewOrchestrator(Config{
			Images:    &fakeSource{pages: makePages(1)},
			Model:     quickMock(),
			Persister: &fakePersister{},
			Archive:   &fakeArchive{err: errors.New("access denied")},
		})

		result := o.Run(context.Background(), "S1", true)

		if !result.Success || result.Outcome != OutcomeSaved {
			t.Fatalf("Success/Outcome = %v/%s", result.Success, result.Outcome)
		}
		if len(result.Errors) != 1 || result.Errors[0] != "access denied" {
			t.Errorf("Errors = %v", result.Errors)
		}
	})

	t.Run("no persister configured", func(t *testing.T) {
		o := NewOrchestrator(Config{Images: &fakeSource{pages: makePages(1)}, Model: quickMock()})

		result := o.Run(context.Background(), "S1", true)
		if result.Outcome != OutcomeSaveFailed {
			t.Errorf("Outcome = %s, want %s", result.Outcome, OutcomeSaveFailed)
		}
	})
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	model := funcTranscriber(func(callCtx context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
		if calls.Add(1) == 1 {
			cancel()
		}
		<-callCtx.Done()
		return nil, callCtx.Err()
	})
	persister := &fakePersister{}
	o := NewOrchestrator(Config{
		Images:         &fakeSource{pages: makePages(5)},
		Model:          model,
		Persister:      persister,
		MaxConcurrency: 1,
	})

	result := o.Run(ctx, "S1", true)

	if result.Outcome != OutcomeFailed || result.Success {
		t.Errorf("Outcome/Success = %s/%v", result.Outcome, result.Success)
	}
	if result.LatexContent != "" || result.PagesProcessed != 0 {
		t.Error("partial results were returned")
	}
	if persister.calls != 0 {
		t.Error("persisted a cancelled run")
	}
	if calls.Load() != 1 {
		t.Errorf("model calls = %d, want 1 after cancellation", calls.Load())
	}
}
