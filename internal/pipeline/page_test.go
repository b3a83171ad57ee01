package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/scriptex/internal/images"
	"github.com/jackzampolin/scriptex/internal/latex"
	"github.com/jackzampolin/scriptex/internal/providers"
)

func TestProcessPage(t *testing.T) {
	page := makePages(1)[0]

	t.Run("sanitized section", func(t *testing.T) {
		model := quickMock()
		model.ResponseText = "```latex\nx_1 and a_b\n```"

		r := ProcessPage(context.Background(), model, page, PageOptions{RunID: "run"})
		if r.Failed() {
			t.Fatalf("unexpected failure: %v", r.Err)
		}
		want := "% ===== Page 1 =====\nx_1 and a\\_b\n"
		if r.Body().Body != want {
			t.Errorf("Body = %q, want %q", r.Body().Body, want)
		}
		if r.ErrorEntry() != "" {
			t.Errorf("ErrorEntry = %q, want empty", r.ErrorEntry())
		}
	})

	t.Run("empty model output", func(t *testing.T) {
		model := quickMock()
		model.PageText = map[int]string{1: ""}

		r := ProcessPage(context.Background(), model, page, PageOptions{})
		if !strings.Contains(r.Body().Body, latex.EmptyContent) {
			t.Errorf("Body = %q, want sentinel", r.Body().Body)
		}
	})

	t.Run("syntax warning annotated", func(t *testing.T) {
		model := quickMock()
		model.ResponseText = "{a"

		r := ProcessPage(context.Background(), model, page, PageOptions{})
		if r.Failed() {
			t.Fatalf("validation must not fail the page: %v", r.Err)
		}
		if !strings.Contains(r.Body().Body, "{a\n% Syntax warning: Unbalanced braces: +1") {
			t.Errorf("Body = %q", r.Body().Body)
		}
		if !strings.HasPrefix(r.ErrorEntry(), "Page 1: Unbalanced braces: +1") {
			t.Errorf("ErrorEntry = %q", r.ErrorEntry())
		}
	})

	t.Run("model error", func(t *testing.T) {
		model := quickMock()
		model.ShouldFail = true

		r := ProcessPage(context.Background(), model, page, PageOptions{})
		if !r.Failed() {
			t.Fatal("expected failure")
		}
		if !strings.HasPrefix(r.Body().Body, "% Failed to process page 1: mock transcriber") {
			t.Errorf("Body = %q", r.Body().Body)
		}
		if r.ErrorEntry() != "Failed to process page 1: mock transcriber configured to fail" {
			t.Errorf("ErrorEntry = %q", r.ErrorEntry())
		}
	})

	t.Run("invalid image data", func(t *testing.T) {
		model := quickMock()
		bad := images.Page{Number: 1, Index: 1, Encoded: "%%%"}

		r := ProcessPage(context.Background(), model, bad, PageOptions{})
		if !r.Failed() {
			t.Fatal("expected failure")
		}
		if model.RequestCount() != 0 {
			t.Error("model called with undecodable image")
		}
	})

	t.Run("panic recovered", func(t *testing.T) {
		model := funcTranscriber(func(context.Context, *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
			panic("boom")
		})

		r := ProcessPage(context.Background(), model, page, PageOptions{})
		if !r.Failed() || !strings.Contains(r.Err.Error(), "boom") {
			t.Errorf("Err = %v, want recovered panic", r.Err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		model := quickMock()
		model.Latency = time.Second

		r := ProcessPage(context.Background(), model, page, PageOptions{Timeout: 20 * time.Millisecond})
		if !errors.Is(r.Err, context.DeadlineExceeded) {
			t.Errorf("Err = %v, want deadline exceeded", r.Err)
		}
	})

	t.Run("request carries page and run id", func(t *testing.T) {
		var got *providers.TranscribeRequest
		model := funcTranscriber(func(_ context.Context, req *providers.TranscribeRequest) (*providers.TranscribeResult, error) {
			got = req
			return &providers.TranscribeResult{Text: "ok"}, nil
		})
		p := makePages(3)[2]

		ProcessPage(context.Background(), model, p, PageOptions{RunID: "run-5"})
		if got.PageNum != 3 || got.RequestID != "run-5-p3" {
			t.Errorf("request = %+v", got)
		}
		if string(got.Image) != "image-3" {
			t.Errorf("Image = %q", got.Image)
		}
	})
}
