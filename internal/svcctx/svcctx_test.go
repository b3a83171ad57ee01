package svcctx

import (
	"context"
	"testing"

	"github.com/jackzampolin/scriptex/internal/config"
	"github.com/jackzampolin/scriptex/internal/providers"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	registry, err := providers.NewRegistry(ctx, providers.Config{Provider: providers.MockName}, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.ImageSourceURL = "http://images.test/"
	cfg.PersistenceURL = "http://persist.test"

	svcs, err := New(ctx, cfg, registry, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if svcs.Pipeline == nil || svcs.Logger == nil {
		t.Fatalf("services incomplete: %+v", svcs)
	}
	if svcs.Archive != nil {
		t.Error("archive should be nil without a bucket")
	}
	if svcs.Images.BaseURL() != "http://images.test" {
		t.Errorf("Images.BaseURL() = %q", svcs.Images.BaseURL())
	}
	if svcs.Persist.BaseURL() != "http://persist.test" {
		t.Errorf("Persist.BaseURL() = %q", svcs.Persist.BaseURL())
	}
	if svcs.Registry != registry {
		t.Error("registry not shared")
	}
}

func TestExtractors(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		ctx := context.Background()
		if ServicesFrom(ctx) != nil || ConfigFrom(ctx) != nil || RegistryFrom(ctx) != nil ||
			ImagesFrom(ctx) != nil || PersistFrom(ctx) != nil || PipelineFrom(ctx) != nil ||
			LoggerFrom(ctx) != nil {
			t.Error("extractors should return nil without services")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		cfg := config.DefaultConfig()
		svcs := &Services{Config: cfg}
		ctx := WithServices(context.Background(), svcs)

		if ServicesFrom(ctx) != svcs {
			t.Error("ServicesFrom() did not return attached services")
		}
		if ConfigFrom(ctx) != cfg {
			t.Error("ConfigFrom() did not return attached config")
		}
		if PipelineFrom(ctx) != nil {
			t.Error("PipelineFrom() should be nil when unset")
		}
	})
}
