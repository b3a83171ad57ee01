package home

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-scriptex")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-scriptex" {
			t.Errorf("expected path /tmp/test-scriptex, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-scriptex")
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-scriptex/config.yaml"},
		{"DocumentsDir", dir.DocumentsDir("S1"), "/tmp/test-scriptex/documents/S1"},
		{"DocumentPath", dir.DocumentPath("S1", at), "/tmp/test-scriptex/documents/S1/20240309T140500Z.tex"},
		{"unsafe id", dir.DocumentsDir("../etc/x"), "/tmp/test-scriptex/documents/__etc_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	dir, err := New(filepath.Join(t.TempDir(), "scriptex-test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("expected directory to not exist initially")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dir.Exists() {
		t.Error("expected directory to exist after EnsureExists")
	}
	if dir.ConfigExists() {
		t.Error("expected no config file")
	}
}

func TestDir_SaveDocument(t *testing.T) {
	dir, _ := New(t.TempDir())
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	path, err := dir.SaveDocument("S1", "\\begin{document}\\end{document}", at)
	if err != nil {
		t.Fatalf("SaveDocument() error = %v", err)
	}
	if path != dir.DocumentPath("S1", at) {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\\begin{document}\\end{document}" {
		t.Errorf("content = %q", data)
	}
}
